// Package service manages organizations (tenants) and their form
// templates. It also backs the activity gate the public surfaces consult
// before serving any applicant traffic.
package service

import (
	"context"
	"errors"
	"log/slog"

	"enrolld/internal/organization/models"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/audit"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/requestcontext"
)

// Store is the organization persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	List(ctx context.Context) ([]*models.Organization, error)
}

// TemplateStore is the form template persistence surface.
type TemplateStore interface {
	Create(ctx context.Context, tpl *models.FormTemplate) error
	FindByID(ctx context.Context, templateID id.TemplateID) (*models.FormTemplate, error)
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.FormTemplate, error)
}

// Service manages the organization lifecycle.
type Service struct {
	store     Store
	templates TemplateStore
	logger    *slog.Logger
	auditor   audit.Publisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

// New constructs a Service.
func New(st Store, templates TemplateStore, opts ...Option) *Service {
	s := &Service{store: st, templates: templates, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the data for a new organization.
type CreateInput struct {
	Name         string
	ContactEmail string
}

// Create registers a new organization. Names are unique across the
// system, compared case-insensitively.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Organization, error) {
	now := requestcontext.Now(ctx)

	org, err := models.NewOrganization(id.NewOrgID(), input.Name, input.ContactEmail, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "organization %q already exists", input.Name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
	}

	s.emit(ctx, audit.EventOrgCreated, org.ID)
	s.logger.InfoContext(ctx, "organization created", "org_id", org.ID, "name", org.Name)
	return org, nil
}

// Get returns one organization.
func (s *Service) Get(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	return s.load(ctx, orgID)
}

// List returns all organizations ordered by name.
func (s *Service) List(ctx context.Context) ([]*models.Organization, error) {
	orgs, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organizations")
	}
	return orgs, nil
}

// Deactivate takes an organization out of service. Its registrations are
// untouched, but every public flow against them reads as not-found until
// the organization is reactivated.
func (s *Service) Deactivate(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := org.CanDeactivate(); err != nil {
		return nil, err
	}
	org.ApplyDeactivation(requestcontext.Now(ctx))

	if err := s.store.Update(ctx, org); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist organization")
	}

	s.emit(ctx, audit.EventOrgDeactivated, org.ID)
	s.logger.InfoContext(ctx, "organization deactivated", "org_id", org.ID)
	return org, nil
}

// Reactivate restores a deactivated organization to service.
func (s *Service) Reactivate(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	org, err := s.load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := org.CanReactivate(); err != nil {
		return nil, err
	}
	org.ApplyReactivation(requestcontext.Now(ctx))

	if err := s.store.Update(ctx, org); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist organization")
	}

	s.emit(ctx, audit.EventOrgReactivated, org.ID)
	s.logger.InfoContext(ctx, "organization reactivated", "org_id", org.ID)
	return org, nil
}

// IsActive reports whether an organization exists and is active. Unknown
// organizations read as inactive rather than erroring, so the public
// surfaces can treat both uniformly as not-found.
func (s *Service) IsActive(ctx context.Context, orgID id.OrgID) (bool, error) {
	org, err := s.store.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	return org.IsActive(), nil
}

// TemplateInput carries the data for a new form template.
type TemplateInput struct {
	Name   string
	Fields []models.FieldDefinition
}

// CreateTemplate adds a form template to an organization.
func (s *Service) CreateTemplate(ctx context.Context, orgID id.OrgID, input TemplateInput) (*models.FormTemplate, error) {
	now := requestcontext.Now(ctx)

	if _, err := s.load(ctx, orgID); err != nil {
		return nil, err
	}

	tpl, err := models.NewFormTemplate(id.NewTemplateID(), orgID, input.Name, input.Fields, now)
	if err != nil {
		return nil, err
	}

	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create template")
	}

	s.emit(ctx, audit.EventTemplateCreated, orgID)
	s.logger.InfoContext(ctx, "template created", "org_id", orgID, "template_id", tpl.ID)
	return tpl, nil
}

// GetTemplate returns a template scoped to the organization.
func (s *Service) GetTemplate(ctx context.Context, orgID id.OrgID, templateID id.TemplateID) (*models.FormTemplate, error) {
	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	if tpl.OrgID != orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "template not found")
	}
	return tpl, nil
}

// ListTemplates returns an organization's templates ordered by name.
func (s *Service) ListTemplates(ctx context.Context, orgID id.OrgID) ([]*models.FormTemplate, error) {
	tpls, err := s.templates.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list templates")
	}
	return tpls, nil
}

func (s *Service) load(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	org, err := s.store.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	return org, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, orgID id.OrgID) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOf(action),
		Timestamp: requestcontext.Now(ctx),
		Action:    action,
		OrgID:     orgID,
		ActorID:   requestcontext.StaffID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
}
