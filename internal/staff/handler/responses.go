package handler

import (
	"time"

	"enrolld/internal/staff/models"
)

// StaffResponse is the wire form of a staff account. The password hash
// never leaves the service.
type StaffResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name,omitempty"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func FromStaffAccount(account *models.StaffAccount) StaffResponse {
	return StaffResponse{
		ID:          account.ID.String(),
		Email:       account.Email,
		Name:        account.Name,
		Role:        string(account.Role),
		CreatedAt:   account.CreatedAt,
		LastLoginAt: account.LastLoginAt,
	}
}

// LoginResponse carries the access token after a successful login.
type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	Staff       StaffResponse `json:"staff"`
}

// ListResponse wraps the staff collection.
type ListResponse struct {
	Staff []StaffResponse `json:"staff"`
}

func FromStaffAccounts(accounts []*models.StaffAccount) ListResponse {
	out := make([]StaffResponse, len(accounts))
	for i, account := range accounts {
		out[i] = FromStaffAccount(account)
	}
	return ListResponse{Staff: out}
}
