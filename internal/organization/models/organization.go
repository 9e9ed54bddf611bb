package models

import (
	"time"

	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
)

// OrgStatus is the organization lifecycle state.
type OrgStatus string

const (
	OrgStatusActive   OrgStatus = "active"
	OrgStatusInactive OrgStatus = "inactive"
)

// Organization is the tenant aggregate. Registrations, templates, and
// staff accounts all hang off an organization.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Status transitions: active <-> inactive only
//
// # Cascade Invariant
//
// When an organization is deactivated, every public flow against its
// registrations must fail as not-found, even though the registration
// records themselves are untouched. This is enforced at a single point
// (the access engine's token resolution) rather than by cascading status
// writes to every registration.
type Organization struct {
	ID            id.OrgID   `json:"id"`
	Name          string     `json:"name"`
	ContactEmail  string     `json:"contact_email"`
	Status        OrgStatus  `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

const maxNameLength = 128

// NewOrganization creates an active organization.
func NewOrganization(orgID id.OrgID, name, contactEmail string, now time.Time) (*Organization, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name is required")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "organization name must be at most %d characters", maxNameLength)
	}
	return &Organization{
		ID:           orgID,
		Name:         name,
		ContactEmail: contactEmail,
		Status:       OrgStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (o *Organization) IsActive() bool {
	return o.Status == OrgStatusActive
}

// CanDeactivate checks the active -> inactive transition.
func (o *Organization) CanDeactivate() error {
	if o.Status == OrgStatusInactive {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already inactive")
	}
	return nil
}

// ApplyDeactivation transitions to inactive. Call CanDeactivate first.
func (o *Organization) ApplyDeactivation(now time.Time) {
	o.Status = OrgStatusInactive
	o.DeactivatedAt = &now
	o.UpdatedAt = now
}

// CanReactivate checks the inactive -> active transition.
func (o *Organization) CanReactivate() error {
	if o.Status == OrgStatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already active")
	}
	return nil
}

// ApplyReactivation transitions back to active. Call CanReactivate first.
func (o *Organization) ApplyReactivation(now time.Time) {
	o.Status = OrgStatusActive
	o.DeactivatedAt = nil
	o.UpdatedAt = now
}
