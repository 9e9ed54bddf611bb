package handler

import (
	"encoding/json"
	"strings"
	"time"

	"enrolld/internal/registration/models"
	"enrolld/internal/registration/service"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
)

// CreateRequest is the HTTP request body for POST /registrations.
type CreateRequest struct {
	TemplateID string          `json:"template_id"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	BirthDate  string          `json:"birth_date"`
	FormData   json.RawMessage `json:"form_data"`

	parsedTemplateID id.TemplateID
	parsedBirthDate  *time.Time
}

// Validate parses the request. Field-level validation (email shape, phone
// format, future birth dates) happens in the domain layer; this only turns
// wire strings into typed values.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.TemplateID = strings.TrimSpace(r.TemplateID)
	if r.TemplateID == "" {
		return dErrors.New(dErrors.CodeValidation, "template_id is required")
	}
	templateID, err := id.ParseTemplateID(r.TemplateID)
	if err != nil {
		return err
	}
	r.parsedTemplateID = templateID

	if r.BirthDate != "" {
		birthDate, err := time.Parse("2006-01-02", r.BirthDate)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "birth_date must be YYYY-MM-DD")
		}
		r.parsedBirthDate = &birthDate
	}
	return nil
}

// ParsedTemplateID returns the validated template ID.
func (r *CreateRequest) ParsedTemplateID() id.TemplateID {
	return r.parsedTemplateID
}

// Fields returns the initial applicant data as a field update.
func (r *CreateRequest) Fields() models.FieldUpdate {
	return models.FieldUpdate{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Email:     strings.TrimSpace(r.Email),
		Phone:     strings.TrimSpace(r.Phone),
		BirthDate: r.parsedBirthDate,
		FormData:  r.FormData,
	}
}

// ActionRequest is the HTTP request body for POST /registrations/{id}/actions.
type ActionRequest struct {
	Action     string `json:"action"`
	Reason     string `json:"reason"`
	AssigneeID string `json:"assignee_id"`
	Comment    string `json:"comment"`

	parsedAction   models.StaffAction
	parsedAssignee id.StaffID
}

// Validate parses the action and its parameters.
func (r *ActionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	action, err := models.ParseStaffAction(strings.TrimSpace(r.Action))
	if err != nil {
		return err
	}
	r.parsedAction = action

	if r.AssigneeID != "" {
		assignee, err := id.ParseStaffID(r.AssigneeID)
		if err != nil {
			return err
		}
		r.parsedAssignee = assignee
	}
	return nil
}

// ParsedAction returns the validated action.
func (r *ActionRequest) ParsedAction() models.StaffAction {
	return r.parsedAction
}

// Input returns the action parameters for the service.
func (r *ActionRequest) Input() service.ActionInput {
	return service.ActionInput{
		Reason:     strings.TrimSpace(r.Reason),
		AssigneeID: r.parsedAssignee,
		Comment:    strings.TrimSpace(r.Comment),
	}
}
