// Package store persists registration records. The Postgres implementation
// is the production one; the in-memory twin backs unit tests and the
// database-less dev mode. Both return sentinel errors that services
// translate into domain errors.
package store

import (
	"context"
	"time"

	"enrolld/internal/registration/models"
	id "enrolld/pkg/domain"
)

// Filter narrows and pages List results. Zero values mean "no constraint".
type Filter struct {
	OrgID      id.OrgID
	Status     models.Status
	AssignedTo id.StaffID
	// Search matches registration number, name, or email (case-insensitive
	// substring).
	Search string

	IncludeDeleted bool

	// Paging; Page is 1-based. PerPage 0 means the store default.
	Page    int
	PerPage int

	// SortBy is one of "created_at", "updated_at", "submitted_at",
	// "registration_number". Unknown values fall back to created_at.
	SortBy   string
	SortDesc bool
}

const defaultPerPage = 50

// Normalize fills paging defaults.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 500 {
		f.PerPage = defaultPerPage
	}
	switch f.SortBy {
	case "created_at", "updated_at", "submitted_at", "registration_number":
	default:
		f.SortBy = "created_at"
	}
	return f
}

// Store is the registration persistence contract.
type Store interface {
	// Create persists a new record. Returns sentinel.ErrConflict when the
	// registration number is already taken.
	Create(ctx context.Context, reg *models.Registration) error

	// FindByID returns the record or sentinel.ErrNotFound. Soft-deleted
	// records are invisible.
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)

	// FindByAccessToken resolves the bearer token from a public link.
	// Returns sentinel.ErrNotFound for unknown tokens and for soft-deleted
	// records alike.
	FindByAccessToken(ctx context.Context, token string) (*models.Registration, error)

	// Update replaces the stored record. Returns sentinel.ErrNotFound when
	// the record does not exist.
	Update(ctx context.Context, reg *models.Registration) error

	// List returns a page of records matching the filter plus the total
	// count across all pages.
	List(ctx context.Context, filter Filter) ([]*models.Registration, int, error)

	// NextSequence allocates the next per-organization, per-year sequence
	// number used to build registration numbers.
	NextSequence(ctx context.Context, orgID id.OrgID, year int) (int, error)

	// ListStale returns editable (Draft/Pending) records whose last activity
	// and last reminder are both older than cutoff, for the reminder job.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Registration, error)
}
