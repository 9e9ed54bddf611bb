// Package service implements the back-office side of registration
// management: staff create records, work them through the status pipeline,
// and export them. Applicant-facing access lives in internal/access.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"enrolld/internal/registration/metrics"
	"enrolld/internal/registration/models"
	"enrolld/internal/registration/store"
	"enrolld/internal/token"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/audit"
	"enrolld/pkg/platform/keylock"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	Update(ctx context.Context, reg *models.Registration) error
	List(ctx context.Context, filter store.Filter) ([]*models.Registration, int, error)
	NextSequence(ctx context.Context, orgID id.OrgID, year int) (int, error)
}

// OrgGate reports whether an organization is accepting public traffic.
type OrgGate interface {
	IsActive(ctx context.Context, orgID id.OrgID) (bool, error)
}

// Service orchestrates staff registration management.
type Service struct {
	store     Store
	locks     *keylock.KeyLock
	orgs      OrgGate
	accessTTL time.Duration
	logger    *slog.Logger
	auditor   audit.Publisher
	metrics   *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithOrgGate(g OrgGate) Option {
	return func(s *Service) {
		s.orgs = g
	}
}

// WithAccessTokenTTL sets the validity window of access links issued when a
// registration is started from the public surface.
func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.accessTTL = ttl
	}
}

// New constructs a Service.
func New(st Store, locks *keylock.KeyLock, opts ...Option) *Service {
	s := &Service{store: st, locks: locks, accessTTL: 24 * time.Hour, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the initial applicant data for a staff-created record.
type CreateInput struct {
	TemplateID id.TemplateID
	Fields     models.FieldUpdate
}

// Create allocates a registration number and persists a Draft record.
// Numbers follow REG-<year>-<seq>, sequenced per organization per year.
func (s *Service) Create(ctx context.Context, orgID id.OrgID, input CreateInput) (*models.Registration, error) {
	now := requestcontext.Now(ctx)

	if err := input.Fields.Validate(now); err != nil {
		return nil, err
	}

	seq, err := s.store.NextSequence(ctx, orgID, now.Year())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate registration number")
	}
	number := fmt.Sprintf("REG-%d-%04d", now.Year(), seq)

	reg, err := models.NewRegistration(id.NewRegistrationID(), orgID, input.TemplateID, number, now)
	if err != nil {
		return nil, err
	}
	input.Fields.Apply(reg, now)

	if err := s.store.Create(ctx, reg); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "registration number already allocated")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registration")
	}

	s.emit(ctx, audit.EventRegistrationCreated, reg, "")
	s.metrics.IncrementCreated(orgID.String())
	s.logger.InfoContext(ctx, "registration created",
		"registration_id", reg.ID, "registration_number", number)

	return reg, nil
}

// StartPublic creates a Draft registration from the public surface and
// issues the access token the applicant continues with. Deactivated
// organizations read as not-found.
func (s *Service) StartPublic(ctx context.Context, orgID id.OrgID, input CreateInput) (*models.Registration, string, error) {
	if s.orgs != nil {
		active, err := s.orgs.IsActive(ctx, orgID)
		if err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check organization")
		}
		if !active {
			return nil, "", dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
	}

	reg, err := s.Create(ctx, orgID, input)
	if err != nil {
		return nil, "", err
	}

	now := requestcontext.Now(ctx)
	accessToken := token.GenerateAccessToken()
	reg.IssueAccessToken(accessToken, now, s.accessTTL)
	if err := s.store.Update(ctx, reg); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist access token")
	}

	s.emit(ctx, audit.EventAccessLinkGenerated, reg, "")
	return reg, accessToken, nil
}

// Get returns a registration scoped to the caller's organization.
func (s *Service) Get(ctx context.Context, orgID id.OrgID, regID id.RegistrationID) (*models.Registration, error) {
	return s.load(ctx, orgID, regID)
}

// List returns a page of registrations. The filter is forced onto the
// caller's organization regardless of what it asked for.
func (s *Service) List(ctx context.Context, orgID id.OrgID, filter store.Filter) ([]*models.Registration, int, error) {
	filter.OrgID = orgID
	regs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return regs, total, nil
}

// ActionInput carries the parameters a staff action may need.
type ActionInput struct {
	// Reason is required for reject.
	Reason string
	// AssigneeID is required for assign.
	AssigneeID id.StaffID
	// Comment is required for comment.
	Comment string
}

// ApplyAction executes one back-office action against a registration. All
// mutations run under the per-registration lock shared with the public
// verification flow, so staff actions never interleave with applicant
// updates on the same record.
func (s *Service) ApplyAction(ctx context.Context, orgID id.OrgID, regID id.RegistrationID, action models.StaffAction, input ActionInput) (*models.Registration, error) {
	now := requestcontext.Now(ctx)

	var result *models.Registration
	err := s.locks.WithLock(regID.String(), func() error {
		reg, err := s.load(ctx, orgID, regID)
		if err != nil {
			return err
		}

		event, err := applyAction(reg, action, input, requestcontext.StaffID(ctx), now)
		if err != nil {
			return err
		}

		if err := s.store.Update(ctx, reg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist registration")
		}

		s.emit(ctx, event, reg, input.Reason)
		s.metrics.IncrementStatusChanged(string(reg.Status))
		result = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "staff action applied",
		"registration_id", regID, "action", string(action), "status", string(result.Status))
	return result, nil
}

func applyAction(reg *models.Registration, action models.StaffAction, input ActionInput, actorID id.StaffID, now time.Time) (audit.AuditEvent, error) {
	switch action {
	case models.ActionValidate:
		if err := reg.CanValidate(); err != nil {
			return "", err
		}
		reg.ApplyValidation(now)
		return audit.EventRegistrationValidated, nil

	case models.ActionReject:
		if input.Reason == "" {
			return "", dErrors.New(dErrors.CodeInvalidInput, "rejection reason is required")
		}
		if err := reg.CanReject(); err != nil {
			return "", err
		}
		reg.ApplyRejection(input.Reason, now)
		return audit.EventRegistrationRejected, nil

	case models.ActionAssign:
		if input.AssigneeID.IsZero() {
			return "", dErrors.New(dErrors.CodeInvalidInput, "assignee is required")
		}
		reg.Assign(input.AssigneeID, now)
		return audit.EventRegistrationAssigned, nil

	case models.ActionComment:
		if err := reg.AddComment(actorID, input.Comment, now); err != nil {
			return "", err
		}
		return audit.EventRegistrationCommented, nil

	case models.ActionCancel:
		if err := reg.Cancel(now); err != nil {
			return "", err
		}
		return audit.EventRegistrationCancelled, nil

	case models.ActionDelete:
		reg.SoftDelete(now)
		return audit.EventRegistrationDeleted, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown action %q", string(action))
}

func (s *Service) load(ctx context.Context, orgID id.OrgID, regID id.RegistrationID) (*models.Registration, error) {
	reg, err := s.store.FindByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	// Cross-organization access reads as not-found, not forbidden.
	if reg.OrgID != orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	return reg, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, reg *models.Registration, reason string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Publish(ctx, audit.Event{
		Category:       audit.CategoryOf(action),
		Timestamp:      requestcontext.Now(ctx),
		Action:         action,
		OrgID:          reg.OrgID,
		RegistrationID: reg.ID,
		ActorID:        requestcontext.StaffID(ctx),
		Reason:         reason,
		RequestID:      requestcontext.RequestID(ctx),
	})
}
