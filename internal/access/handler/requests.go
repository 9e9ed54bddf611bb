package handler

import (
	"encoding/json"
	"strings"
	"time"

	"enrolld/internal/registration/models"
	dErrors "enrolld/pkg/domain-errors"
)

// VerifyRequest is the HTTP request body for POST /registrations/{token}/verify.
type VerifyRequest struct {
	Code string `json:"code"`
}

// Validate checks the submitted code's shape. Whether it matches is the
// engine's business.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Code = strings.TrimSpace(r.Code)
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	if len(r.Code) > 16 {
		return dErrors.New(dErrors.CodeValidation, "code is too long")
	}
	return nil
}

// UpdateRequest is the HTTP request body for PATCH /registrations/{token}.
// All fields are optional; empty fields leave the stored values untouched.
type UpdateRequest struct {
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	BirthDate string          `json:"birth_date"`
	FormData  json.RawMessage `json:"form_data"`
	Submit    bool            `json:"submit"`

	parsedBirthDate *time.Time
}

// Validate parses the wire shapes. Domain validation of the values runs in
// the engine before anything is applied.
func (r *UpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.BirthDate != "" {
		birthDate, err := time.Parse("2006-01-02", r.BirthDate)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "birth_date must be YYYY-MM-DD")
		}
		r.parsedBirthDate = &birthDate
	}
	return nil
}

// Fields returns the update as a domain field set.
func (r *UpdateRequest) Fields() models.FieldUpdate {
	return models.FieldUpdate{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Email:     strings.TrimSpace(r.Email),
		Phone:     strings.TrimSpace(r.Phone),
		BirthDate: r.parsedBirthDate,
		FormData:  r.FormData,
	}
}
