package models

import (
	"time"

	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
)

// FieldType is the kind of answer a template field collects.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeNumber FieldType = "number"
	FieldTypeDate   FieldType = "date"
	FieldTypeSelect FieldType = "select"
	FieldTypeBool   FieldType = "bool"
)

var validFieldTypes = map[FieldType]bool{
	FieldTypeText:   true,
	FieldTypeNumber: true,
	FieldTypeDate:   true,
	FieldTypeSelect: true,
	FieldTypeBool:   true,
}

// FieldDefinition is one question on a registration form.
type FieldDefinition struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	// Options is the choice list for select fields.
	Options []string `json:"options,omitempty"`
}

// FormTemplate defines the shape of a registration form for one
// organization. Registrations reference the template their FormData
// answers.
type FormTemplate struct {
	ID        id.TemplateID     `json:"id"`
	OrgID     id.OrgID          `json:"org_id"`
	Name      string            `json:"name"`
	Version   int               `json:"version"`
	Fields    []FieldDefinition `json:"fields"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewFormTemplate creates an active version-1 template.
func NewFormTemplate(templateID id.TemplateID, orgID id.OrgID, name string, fields []FieldDefinition, now time.Time) (*FormTemplate, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template name is required")
	}
	if len(fields) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template requires at least one field")
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "field name is required")
		}
		if seen[f.Name] {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if !validFieldTypes[f.Type] {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown field type %q", string(f.Type))
		}
		if f.Type == FieldTypeSelect && len(f.Options) == 0 {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "select field %q requires options", f.Name)
		}
	}

	return &FormTemplate{
		ID:        templateID,
		OrgID:     orgID,
		Name:      name,
		Version:   1,
		Fields:    fields,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
