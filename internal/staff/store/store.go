// Package store persists staff accounts.
package store

import (
	"context"

	"enrolld/internal/staff/models"
	id "enrolld/pkg/domain"
)

// Store is the staff account persistence contract. Emails are unique
// across the system; Create returns sentinel.ErrConflict on a duplicate,
// lookups return sentinel.ErrNotFound on a miss.
type Store interface {
	Create(ctx context.Context, account *models.StaffAccount) error
	FindByID(ctx context.Context, staffID id.StaffID) (*models.StaffAccount, error)
	FindByEmail(ctx context.Context, email string) (*models.StaffAccount, error)
	Update(ctx context.Context, account *models.StaffAccount) error
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.StaffAccount, error)
}
