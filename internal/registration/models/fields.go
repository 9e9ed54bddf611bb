package models

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/asaskevich/govalidator"

	dErrors "enrolld/pkg/domain-errors"
)

// phonePattern is E.164 with an optional leading plus.
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// FieldUpdate carries a partial self-service update. Empty fields mean
// "leave untouched"; there is no way to blank a value through this path,
// matching the public form's semantics.
type FieldUpdate struct {
	FirstName string          `json:"first_name,omitempty"`
	LastName  string          `json:"last_name,omitempty"`
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	BirthDate *time.Time      `json:"birth_date,omitempty"`
	FormData  json.RawMessage `json:"form_data,omitempty"`
}

// Validate checks every provided field before any mutation happens, so a
// failure leaves the record untouched.
func (f FieldUpdate) Validate(now time.Time) error {
	if f.FirstName != "" && !govalidator.StringLength(f.FirstName, "1", "100") {
		return dErrors.New(dErrors.CodeValidation, "first name must be 100 characters or less")
	}
	if f.LastName != "" && !govalidator.StringLength(f.LastName, "1", "100") {
		return dErrors.New(dErrors.CodeValidation, "last name must be 100 characters or less")
	}
	if f.Email != "" && !govalidator.IsEmail(f.Email) {
		return dErrors.New(dErrors.CodeValidation, "invalid email address")
	}
	if f.Phone != "" && !phonePattern.MatchString(f.Phone) {
		return dErrors.New(dErrors.CodeValidation, "invalid phone number")
	}
	if f.BirthDate != nil && f.BirthDate.After(now) {
		return dErrors.New(dErrors.CodeValidation, "birth date cannot be in the future")
	}
	if len(f.FormData) > 0 && !json.Valid(f.FormData) {
		return dErrors.New(dErrors.CodeValidation, "form data must be valid JSON")
	}
	return nil
}

// ValidatePhone checks a standalone phone number (used when the applicant
// supplies one during a resend flow).
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return dErrors.New(dErrors.CodeValidation, "invalid phone number")
	}
	return nil
}

// Apply writes the provided fields onto the registration and stamps
// UpdatedAt. Callers must have called Validate first and hold the
// registration's lock.
func (f FieldUpdate) Apply(r *Registration, now time.Time) {
	if f.FirstName != "" {
		r.FirstName = f.FirstName
	}
	if f.LastName != "" {
		r.LastName = f.LastName
	}
	if f.Email != "" {
		r.Email = f.Email
	}
	if f.Phone != "" {
		r.Phone = f.Phone
	}
	if f.BirthDate != nil {
		bd := *f.BirthDate
		r.BirthDate = &bd
	}
	if len(f.FormData) > 0 {
		r.FormData = append(json.RawMessage(nil), f.FormData...)
	}
	r.UpdatedAt = now
}

// IsEmpty reports whether the update carries no fields at all.
func (f FieldUpdate) IsEmpty() bool {
	return f.FirstName == "" && f.LastName == "" && f.Email == "" &&
		f.Phone == "" && f.BirthDate == nil && len(f.FormData) == 0
}
