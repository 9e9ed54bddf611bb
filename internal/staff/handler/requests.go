package handler

import (
	"enrolld/internal/staff/models"
	dErrors "enrolld/pkg/domain-errors"
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email and password are required")
	}
	return nil
}

// CreateRequest is the body of POST /staff.
type CreateRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r *CreateRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "password is required")
	}
	if !models.Role(r.Role).IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", r.Role)
	}
	return nil
}
