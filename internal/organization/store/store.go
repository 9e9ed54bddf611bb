// Package store persists organizations and form templates.
package store

import (
	"context"

	"enrolld/internal/organization/models"
	id "enrolld/pkg/domain"
)

// Store is the organization persistence contract. Organization names are
// unique case-insensitively; Create returns sentinel.ErrConflict on a
// duplicate.
type Store interface {
	Create(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	List(ctx context.Context) ([]*models.Organization, error)
}

// TemplateStore persists form templates.
type TemplateStore interface {
	Create(ctx context.Context, tpl *models.FormTemplate) error
	FindByID(ctx context.Context, templateID id.TemplateID) (*models.FormTemplate, error)
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.FormTemplate, error)
}
