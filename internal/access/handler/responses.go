package handler

import (
	"encoding/json"
	"time"

	"enrolld/internal/registration/models"
)

// CodeIssuedResponse is the HTTP response for POST /registrations/{token}/code.
type CodeIssuedResponse struct {
	MaskedRecipient  string `json:"masked_recipient"`
	Channel          string `json:"channel"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// VerifyResponse is the HTTP response for POST /registrations/{token}/verify.
type VerifyResponse struct {
	SessionToken   string `json:"session_token"`
	RegistrationID string `json:"registration_id"`
}

// ResendResponse is the HTTP response for POST /registrations/{token}/resend.
type ResendResponse struct {
	MaskedRecipient     string `json:"masked_recipient,omitempty"`
	RequiresPhoneUpdate bool   `json:"requires_phone_update"`
}

// UpdateResponse is the HTTP response for PATCH /registrations/{token}.
type UpdateResponse struct {
	Status    string `json:"status"`
	Submitted bool   `json:"submitted"`
}

// RegistrationView is the applicant's read-only projection of their own
// record. Internal workflow fields (assignee, comments, tokens, codes) are
// not theirs to see.
type RegistrationView struct {
	RegistrationNumber string          `json:"registration_number"`
	Status             string          `json:"status"`
	FirstName          string          `json:"first_name"`
	LastName           string          `json:"last_name"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	BirthDate          *time.Time      `json:"birth_date,omitempty"`
	PhoneVerified      bool            `json:"phone_verified"`
	EmailVerified      bool            `json:"email_verified"`
	FormData           json.RawMessage `json:"form_data,omitempty"`
	Editable           bool            `json:"editable"`
	SubmittedAt        *time.Time      `json:"submitted_at,omitempty"`
}

// FromRegistration converts a registration to the applicant view.
func FromRegistration(reg *models.Registration) *RegistrationView {
	return &RegistrationView{
		RegistrationNumber: reg.RegistrationNumber,
		Status:             string(reg.Status),
		FirstName:          reg.FirstName,
		LastName:           reg.LastName,
		Email:              reg.Email,
		Phone:              reg.Phone,
		BirthDate:          reg.BirthDate,
		PhoneVerified:      reg.PhoneVerified,
		EmailVerified:      reg.EmailVerified,
		FormData:           reg.FormData,
		Editable:           reg.Status.IsEditable(),
		SubmittedAt:        reg.SubmittedAt,
	}
}
