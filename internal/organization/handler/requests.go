package handler

import (
	"github.com/asaskevich/govalidator"

	"enrolld/internal/organization/models"
	dErrors "enrolld/pkg/domain-errors"
)

// CreateRequest is the body of POST /organizations.
type CreateRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
}

func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if r.ContactEmail != "" && !govalidator.IsEmail(r.ContactEmail) {
		return dErrors.New(dErrors.CodeValidation, "contact_email is not a valid email address")
	}
	return nil
}

// TemplateFieldRequest is one field definition in a template body.
type TemplateFieldRequest struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// CreateTemplateRequest is the body of POST /organizations/{orgID}/templates.
type CreateTemplateRequest struct {
	Name   string                 `json:"name"`
	Fields []TemplateFieldRequest `json:"fields"`
}

func (r *CreateTemplateRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if len(r.Fields) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one field is required")
	}
	return nil
}

// Definitions converts the request fields into domain definitions. Field
// type validity is checked by the model constructor.
func (r *CreateTemplateRequest) Definitions() []models.FieldDefinition {
	defs := make([]models.FieldDefinition, len(r.Fields))
	for i, f := range r.Fields {
		defs[i] = models.FieldDefinition{
			Name:     f.Name,
			Label:    f.Label,
			Type:     models.FieldType(f.Type),
			Required: f.Required,
			Options:  f.Options,
		}
	}
	return defs
}
