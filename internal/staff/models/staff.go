// Package models defines staff accounts, the back-office identities that
// work registrations. Applicants never have accounts; they act through
// access tokens.
package models

import (
	"time"

	"github.com/asaskevich/govalidator"
	"golang.org/x/crypto/bcrypt"

	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
)

// Role is the staff permission level.
type Role string

const (
	// RoleAdmin manages organizations, templates, and staff accounts.
	RoleAdmin Role = "admin"
	// RoleReviewer works registrations: validate, reject, assign, comment.
	RoleReviewer Role = "reviewer"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleReviewer
}

// StaffAccount is a back-office user scoped to one organization.
type StaffAccount struct {
	ID           id.StaffID `json:"id"`
	OrgID        id.OrgID   `json:"org_id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

const minPasswordLength = 10

// NewStaffAccount creates an account with a bcrypt-hashed password.
// Emails are unique across all organizations; they are the login key.
func NewStaffAccount(staffID id.StaffID, orgID id.OrgID, email, name, password string, role Role, now time.Time) (*StaffAccount, error) {
	if !govalidator.IsEmail(email) {
		return nil, dErrors.New(dErrors.CodeValidation, "email is not a valid email address")
	}
	if len(password) < minPasswordLength {
		return nil, dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	if !role.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", string(role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	return &StaffAccount{
		ID:           staffID,
		OrgID:        orgID,
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CheckPassword reports whether the candidate matches the stored hash.
func (a *StaffAccount) CheckPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(candidate)) == nil
}

// RecordLogin stamps a successful authentication.
func (a *StaffAccount) RecordLogin(now time.Time) {
	a.LastLoginAt = &now
	a.UpdatedAt = now
}
