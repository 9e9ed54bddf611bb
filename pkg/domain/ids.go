// Package domain defines typed identifiers shared across modules. Distinct
// UUID types prevent a registration ID from being passed where an
// organization ID is expected; the compiler enforces what code review would
// otherwise have to catch.
package domain

import (
	"github.com/google/uuid"

	dErrors "enrolld/pkg/domain-errors"
)

type (
	// OrgID identifies an organization (tenant).
	OrgID uuid.UUID
	// RegistrationID identifies a registration record.
	RegistrationID uuid.UUID
	// TemplateID identifies a form template.
	TemplateID uuid.UUID
	// StaffID identifies a staff account.
	StaffID uuid.UUID
)

func (id OrgID) String() string          { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id TemplateID) String() string     { return uuid.UUID(id).String() }
func (id StaffID) String() string        { return uuid.UUID(id).String() }

func (id OrgID) IsZero() bool          { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id StaffID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }

// NewOrgID generates a fresh organization ID.
func NewOrgID() OrgID { return OrgID(uuid.New()) }

// NewRegistrationID generates a fresh registration ID.
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }

// NewTemplateID generates a fresh template ID.
func NewTemplateID() TemplateID { return TemplateID(uuid.New()) }

// NewStaffID generates a fresh staff ID.
func NewStaffID() StaffID { return StaffID(uuid.New()) }

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", kind)
	}
	return u, nil
}

// ParseOrgID parses and validates an organization ID from its string form.
func ParseOrgID(s string) (OrgID, error) {
	u, err := parseUUID(s, "organization id")
	return OrgID(u), err
}

// ParseRegistrationID parses and validates a registration ID from its string form.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration id")
	return RegistrationID(u), err
}

// ParseTemplateID parses and validates a template ID from its string form.
func ParseTemplateID(s string) (TemplateID, error) {
	u, err := parseUUID(s, "template id")
	return TemplateID(u), err
}

// ParseStaffID parses and validates a staff ID from its string form.
func ParseStaffID(s string) (StaffID, error) {
	u, err := parseUUID(s, "staff id")
	return StaffID(u), err
}
