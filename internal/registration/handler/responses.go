package handler

import (
	"encoding/json"
	"time"

	"enrolld/internal/registration/models"
	"enrolld/internal/registration/store"
)

// StartResponse is the public response when an applicant begins a
// registration.
type StartResponse struct {
	RegistrationNumber string `json:"registration_number"`
	AccessToken        string `json:"access_token"`
	Status             string `json:"status"`
}

// RegistrationResponse is the staff-facing registration shape. Access
// tokens and one-time codes never appear here.
type RegistrationResponse struct {
	ID                 string            `json:"id"`
	OrgID              string            `json:"org_id"`
	TemplateID         string            `json:"template_id"`
	RegistrationNumber string            `json:"registration_number"`
	Status             string            `json:"status"`
	FirstName          string            `json:"first_name"`
	LastName           string            `json:"last_name"`
	Email              string            `json:"email"`
	Phone              string            `json:"phone"`
	BirthDate          *time.Time        `json:"birth_date,omitempty"`
	PhoneVerified      bool              `json:"phone_verified"`
	EmailVerified      bool              `json:"email_verified"`
	FormData           json.RawMessage   `json:"form_data,omitempty"`
	AssignedTo         string            `json:"assigned_to,omitempty"`
	Comments           []CommentResponse `json:"comments,omitempty"`
	RejectionReason    string            `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	SubmittedAt        *time.Time        `json:"submitted_at,omitempty"`
	ValidatedAt        *time.Time        `json:"validated_at,omitempty"`
	RejectedAt         *time.Time        `json:"rejected_at,omitempty"`
}

// CommentResponse is one staff comment.
type CommentResponse struct {
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ListResponse is the paged list envelope.
type ListResponse struct {
	Registrations []*RegistrationResponse `json:"registrations"`
	Total         int                     `json:"total"`
	Page          int                     `json:"page"`
	PerPage       int                     `json:"per_page"`
}

// FromRegistration converts a domain registration to its response shape.
func FromRegistration(reg *models.Registration) *RegistrationResponse {
	resp := &RegistrationResponse{
		ID:                 reg.ID.String(),
		OrgID:              reg.OrgID.String(),
		TemplateID:         reg.TemplateID.String(),
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
		RejectionReason:    reg.RejectionReason,
		CreatedAt:          reg.CreatedAt,
		UpdatedAt:          reg.UpdatedAt,
		SubmittedAt:        reg.SubmittedAt,
		ValidatedAt:        reg.ValidatedAt,
		RejectedAt:         reg.RejectedAt,
	}
	if reg.AssignedTo != nil {
		resp.AssignedTo = reg.AssignedTo.String()
	}
	for _, c := range reg.Comments {
		resp.Comments = append(resp.Comments, CommentResponse{
			AuthorID:  c.AuthorID.String(),
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		})
	}
	return resp
}

// FromList converts a page of registrations plus its paging metadata.
func FromList(regs []*models.Registration, total int, filter store.Filter) *ListResponse {
	filter = filter.Normalize()
	resp := &ListResponse{
		Registrations: make([]*RegistrationResponse, 0, len(regs)),
		Total:         total,
		Page:          filter.Page,
		PerPage:       filter.PerPage,
	}
	for _, reg := range regs {
		resp.Registrations = append(resp.Registrations, FromRegistration(reg))
	}
	return resp
}
