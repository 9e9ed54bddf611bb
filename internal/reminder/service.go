// Package reminder nudges applicants whose registrations have gone quiet.
// A periodic job scans for stale Draft/Pending records and emails each a
// fresh access link; staff can also regenerate a link for one registration
// on demand.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"enrolld/internal/platform/config"
	"enrolld/internal/registration/models"
	"enrolld/internal/token"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/audit"
	"enrolld/pkg/platform/keylock"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/requestcontext"
)

// Store is the registration persistence surface the reminder job needs.
type Store interface {
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	Update(ctx context.Context, reg *models.Registration) error
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Registration, error)
}

// LinkSender delivers an access link to an applicant.
type LinkSender interface {
	SendAccessLink(ctx context.Context, recipient, registrationNumber, link string) error
}

// Service regenerates access links and runs the stale-registration sweep.
type Service struct {
	store   Store
	locks   *keylock.KeyLock
	sender  LinkSender
	cfg     config.ReminderConfig
	baseURL string
	// tokenTTL is the validity of staff-regenerated links; reminderTTL the
	// longer validity of links issued with reminders.
	tokenTTL    time.Duration
	reminderTTL time.Duration
	codeTTL     time.Duration
	logger      *slog.Logger
	auditor     audit.Publisher
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

func WithSender(sender LinkSender) Option {
	return func(s *Service) {
		s.sender = sender
	}
}

// WithTokenTTLs sets the link validity windows for staff-regenerated and
// reminder-issued links respectively.
func WithTokenTTLs(staffTTL, reminderTTL time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = staffTTL
		s.reminderTTL = reminderTTL
	}
}

// WithCodeTTL sets the validity of the one-time code issued alongside a
// staff-generated link.
func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.codeTTL = ttl
	}
}

// New constructs the reminder service. baseURL is the public origin the
// links are composed against.
func New(st Store, locks *keylock.KeyLock, cfg config.ReminderConfig, baseURL string, opts ...Option) *Service {
	s := &Service{
		store:       st,
		locks:       locks,
		cfg:         cfg,
		baseURL:     baseURL,
		tokenTTL:    24 * time.Hour,
		reminderTTL: 7 * 24 * time.Hour,
		codeTTL:     10 * time.Minute,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LinkResult describes a freshly issued access link. Code and Channel are
// only set by GenerateAccessLink; reminders force the applicant to request
// a new code on arrival.
type LinkResult struct {
	Link      string
	Token     string
	Code      string
	ExpiresAt time.Time
	Channel   models.ContactChannel
}

// GenerateAccessLink issues a fresh access token and one-time code for one
// registration at a staff member's request. The attempt counter resets with
// the code, and the reminder timestamp is stamped so the sweep leaves the
// record alone.
func (s *Service) GenerateAccessLink(ctx context.Context, orgID id.OrgID, regID id.RegistrationID) (*LinkResult, error) {
	now := requestcontext.Now(ctx)

	var result *LinkResult
	err := s.locks.WithLock(regID.String(), func() error {
		reg, err := s.load(ctx, orgID, regID)
		if err != nil {
			return err
		}

		reg.IssueAccessToken(token.GenerateAccessToken(), now, s.tokenTTL)
		reg.IssueStaffCode(token.GenerateOneTimeCode(), now, s.codeTTL)
		reg.RecordReminder(now)
		if err := s.store.Update(ctx, reg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist access token")
		}

		result = &LinkResult{
			Link:      s.composeLink(reg.AccessToken),
			Token:     reg.AccessToken,
			Code:      reg.SMSVerificationCode,
			ExpiresAt: *reg.AccessTokenExpiry,
			Channel:   reg.PreferredChannel(),
		}
		s.emit(ctx, audit.EventAccessLinkGenerated, reg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "access link regenerated", "registration_id", regID)
	return result, nil
}

// SendReminder issues a long-lived access link for one registration at a
// staff member's request, emails it to the applicant, and clears any stale
// one-time code so the applicant must request a fresh one on arrival.
func (s *Service) SendReminder(ctx context.Context, orgID id.OrgID, regID id.RegistrationID) (*LinkResult, error) {
	now := requestcontext.Now(ctx)

	var result *LinkResult
	err := s.locks.WithLock(regID.String(), func() error {
		reg, err := s.load(ctx, orgID, regID)
		if err != nil {
			return err
		}
		if reg.Email == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "no email on file")
		}

		reg.IssueAccessToken(token.GenerateAccessToken(), now, s.reminderTTL)
		reg.ClearCode()
		reg.RecordReminder(now)
		if err := s.store.Update(ctx, reg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist reminder")
		}

		link := s.composeLink(reg.AccessToken)
		if s.sender != nil {
			if err := s.sender.SendAccessLink(ctx, reg.Email, reg.RegistrationNumber, link); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to send reminder")
			}
		}

		result = &LinkResult{
			Link:      link,
			Token:     reg.AccessToken,
			ExpiresAt: *reg.AccessTokenExpiry,
		}
		s.emit(ctx, audit.EventReminderSent, reg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "reminder sent", "registration_id", regID)
	return result, nil
}

// sweepBatchSize bounds one sweep so a huge backlog cannot hold the cron
// slot forever; the next run picks up the remainder.
const sweepBatchSize = 200

// SweepStale finds editable registrations idle past the configured window
// and emails each a fresh long-lived access link. Pending codes are cleared
// so the old six digits cannot be replayed against the new link. Returns
// the number of reminders sent.
func (s *Service) SweepStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.cfg.StaleAfter)
	stale, err := s.store.ListStale(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale registrations: %w", err)
	}

	sent := 0
	for _, candidate := range stale {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := s.remind(ctx, candidate.ID, now); err != nil {
			// One bad record must not starve the rest of the batch.
			s.logger.ErrorContext(ctx, "reminder failed",
				"registration_id", candidate.ID, "error", err)
			continue
		}
		sent++
	}

	if sent > 0 {
		s.logger.InfoContext(ctx, "reminder sweep completed", "sent", sent, "candidates", len(stale))
	}
	return sent, nil
}

func (s *Service) remind(ctx context.Context, regID id.RegistrationID, now time.Time) error {
	return s.locks.WithLock(regID.String(), func() error {
		reg, err := s.store.FindByID(ctx, regID)
		if err != nil {
			return err
		}
		// Re-check under the lock; the record may have moved on since the scan.
		if !reg.Status.IsEditable() {
			return nil
		}
		if reg.Email == "" {
			return fmt.Errorf("no email on file")
		}

		reg.IssueAccessToken(token.GenerateAccessToken(), now, s.reminderTTL)
		reg.ClearCode()
		reg.RecordReminder(now)
		if err := s.store.Update(ctx, reg); err != nil {
			return fmt.Errorf("persist reminder: %w", err)
		}

		if s.sender != nil {
			if err := s.sender.SendAccessLink(ctx, reg.Email, reg.RegistrationNumber, s.composeLink(reg.AccessToken)); err != nil {
				return fmt.Errorf("send reminder: %w", err)
			}
		}

		s.emit(ctx, audit.EventReminderSent, reg)
		return nil
	})
}

func (s *Service) composeLink(accessToken string) string {
	return fmt.Sprintf("%s/public/registrations/%s", s.baseURL, accessToken)
}

func (s *Service) load(ctx context.Context, orgID id.OrgID, regID id.RegistrationID) (*models.Registration, error) {
	reg, err := s.store.FindByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	if reg.OrgID != orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	return reg, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, reg *models.Registration) {
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
		RequestID:      requestcontext.RequestID(ctx),
	})
}
