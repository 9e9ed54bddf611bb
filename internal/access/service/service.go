// Package service implements the public access protocol: an applicant
// reaches their registration through a bearer link, proves control of a
// contact channel with a one-time code, and then reads or edits the record
// within the limits of its status.
//
// Every mutation of verification state runs under a per-registration lock.
// Without it, parallel wrong-code submissions each read the pre-increment
// attempt count and the ceiling can be bypassed.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"enrolld/internal/access/metrics"
	"enrolld/internal/access/session"
	"enrolld/internal/platform/config"
	"enrolld/internal/registration/models"
	"enrolld/internal/token"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/audit"
	"enrolld/pkg/platform/keylock"
	"enrolld/pkg/platform/privacy"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/requestcontext"
)

// Store is the registration persistence surface the engine needs.
type Store interface {
	FindByAccessToken(ctx context.Context, token string) (*models.Registration, error)
	Update(ctx context.Context, reg *models.Registration) error
}

// Notifier delivers one-time codes. Implementations must never log the code.
type Notifier interface {
	SendCode(ctx context.Context, channel models.ContactChannel, recipient, code string, ttl time.Duration) error
}

// OrgGate reports whether an organization is accepting public traffic.
type OrgGate interface {
	IsActive(ctx context.Context, orgID id.OrgID) (bool, error)
}

// Service is the access verification engine.
type Service struct {
	store    Store
	sessions session.Store
	notifier Notifier
	orgs     OrgGate
	locks    *keylock.KeyLock
	cfg      config.VerificationConfig
	logger   *slog.Logger
	auditor  audit.Publisher
	metrics  *metrics.Metrics
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

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithOrgGate(g OrgGate) Option {
	return func(s *Service) {
		s.orgs = g
	}
}

// New constructs the engine. The lock set must be shared with every other
// component that mutates registrations.
func New(st Store, sessions session.Store, locks *keylock.KeyLock, cfg config.VerificationConfig, opts ...Option) *Service {
	s := &Service{
		store:    st,
		sessions: sessions,
		locks:    locks,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CodeIssued reports where a fresh code went and how long it lives.
type CodeIssued struct {
	MaskedRecipient  string
	Channel          models.ContactChannel
	ExpiresInMinutes int
}

// RequestCode issues a fresh one-time SMS code for the registration behind
// the access token. Issuing a new code supersedes any previous one and
// resets the attempt counter.
func (s *Service) RequestCode(ctx context.Context, accessToken string) (*CodeIssued, error) {
	now := requestcontext.Now(ctx)

	var result *CodeIssued
	err := s.withRegistration(ctx, accessToken, func(reg *models.Registration) error {
		if reg.AccessExpired(now) {
			return dErrors.New(dErrors.CodeExpired, "access link has expired")
		}
		if reg.Phone == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "no phone number on file")
		}

		code := token.GenerateOneTimeCode()
		reg.IssueCode(code, now, s.cfg.CodeTTL)
		if err := s.store.Update(ctx, reg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist code")
		}

		masked := privacy.MaskPhoneNumber(reg.Phone)
		s.deliver(ctx, reg, models.ChannelSMS, reg.Phone, code)
		s.emit(ctx, audit.EventCodeRequested, reg, string(models.ChannelSMS), masked, "")
		s.metrics.IncrementCodesIssued(string(models.ChannelSMS))

		result = &CodeIssued{
			MaskedRecipient:  masked,
			Channel:          models.ChannelSMS,
			ExpiresInMinutes: int(s.cfg.CodeTTL.Minutes()),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyResult carries the session issued after a successful verification.
type VerifyResult struct {
	SessionToken   string
	RegistrationID id.RegistrationID
}

// Verify checks a submitted code against the stored one.
//
// Outcomes, in precedence order: unknown token, expired link, attempt
// ceiling reached, mismatch (counted), correct-but-expired (not counted),
// success. A correct code that arrived too late was consumed by time, not
// by error, so it does not burn an attempt.
func (s *Service) Verify(ctx context.Context, accessToken, code string) (*VerifyResult, error) {
	now := requestcontext.Now(ctx)

	var result *VerifyResult
	err := s.withRegistration(ctx, accessToken, func(reg *models.Registration) error {
		if reg.AccessExpired(now) {
			s.metrics.IncrementVerifyOutcome("link_expired")
			return dErrors.New(dErrors.CodeExpired, "access link has expired")
		}

		// Staff-issued codes verify against the more tolerant resend ceiling.
		ceiling := s.cfg.PublicAttemptCeiling
		if reg.CodeOrigin == models.CodeOriginStaff {
			ceiling = s.cfg.ResendAttemptCeiling
		}

		if reg.VerificationAttempts >= ceiling {
			s.emit(ctx, audit.EventVerificationLocked, reg, string(models.ChannelSMS), privacy.MaskPhoneNumber(reg.Phone), "attempt ceiling reached")
			s.metrics.IncrementVerifyOutcome("too_many_attempts")
			return dErrors.New(dErrors.CodeTooManyAttempts, "too many attempts, request a new code")
		}

		if subtle.ConstantTimeCompare([]byte(reg.SMSVerificationCode), []byte(code)) != 1 || reg.SMSVerificationCode == "" {
			remaining := reg.RecordFailedAttempt(ceiling)
			if err := s.store.Update(ctx, reg); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist attempt")
			}
			s.emit(ctx, audit.EventVerificationFailed, reg, string(models.ChannelSMS), privacy.MaskPhoneNumber(reg.Phone), "")
			s.metrics.IncrementVerifyOutcome("invalid_code")
			return dErrors.New(dErrors.CodeInvalidCode, "incorrect code").WithRemaining(remaining)
		}

		if reg.CodeExpired(now) {
			s.metrics.IncrementVerifyOutcome("code_expired")
			return dErrors.New(dErrors.CodeCodeExpired, "code has expired, request a new one")
		}

		reg.MarkPhoneVerified(now)
		if err := s.store.Update(ctx, reg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verification")
		}

		sessionToken := token.GenerateSessionToken()
		if s.sessions != nil {
			if err := s.sessions.Issue(ctx, sessionToken, reg.ID, s.cfg.SessionTTL); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
			}
		}

		s.emit(ctx, audit.EventChannelVerified, reg, string(models.ChannelSMS), privacy.MaskPhoneNumber(reg.Phone), "")
		s.metrics.IncrementVerifyOutcome("success")
		result = &VerifyResult{SessionToken: sessionToken, RegistrationID: reg.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "channel verified", "registration_id", result.RegistrationID)
	return result, nil
}

// ResendResult reports the resend outcome. RequiresPhoneUpdate is set
// instead of an error when no phone is on file, so the caller can prompt
// for one.
type ResendResult struct {
	MaskedRecipient     string
	RequiresPhoneUpdate bool
}

// Resend issues a replacement code over SMS.
func (s *Service) Resend(ctx context.Context, accessToken string) (*ResendResult, error) {
	now := requestcontext.Now(ctx)

	var result *ResendResult
	err := s.withRegistration(ctx, accessToken, func(reg *models.Registration) error {
		if reg.AccessExpired(now) {
			return dErrors.New(dErrors.CodeExpired, "access link has expired")
		}
		if reg.Phone == "" {
			result = &ResendResult{RequiresPhoneUpdate: true}
			return nil
		}

		code := token.GenerateOneTimeCode()
		reg.IssueCode(code, now, s.cfg.CodeTTL)
		if err := s.store.Update(ctx, reg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist code")
		}

		masked := privacy.MaskPhoneNumber(reg.Phone)
		s.deliver(ctx, reg, models.ChannelSMS, reg.Phone, code)
		s.emit(ctx, audit.EventCodeResent, reg, string(models.ChannelSMS), masked, "")
		s.metrics.IncrementCodesIssued(string(models.ChannelSMS))

		result = &ResendResult{MaskedRecipient: masked}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetRegistration returns the record behind a token for a verified
// applicant. Unverified callers get not-found: the public surface never
// confirms that a token points at anything until the channel is proven.
func (s *Service) GetRegistration(ctx context.Context, accessToken, sessionToken string) (*models.Registration, error) {
	now := requestcontext.Now(ctx)

	reg, err := s.find(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if reg.AccessExpired(now) {
		return nil, dErrors.New(dErrors.CodeExpired, "access link has expired")
	}
	if err := s.authorize(ctx, reg, sessionToken); err != nil {
		return nil, err
	}
	return reg, nil
}

// UpdateInput is a self-service edit.
type UpdateInput struct {
	Fields models.FieldUpdate
	// Submit requests the Draft -> Pending transition after the edit.
	Submit bool
}

// UpdateResult reports what the update did.
type UpdateResult struct {
	Status    models.Status
	Submitted bool
}

// Update applies a partial self-service edit. Validation runs before any
// mutation, so a failed update never leaves a half-applied record.
func (s *Service) Update(ctx context.Context, accessToken, sessionToken string, input UpdateInput) (*UpdateResult, error) {
	now := requestcontext.Now(ctx)

	var result *UpdateResult
	err := s.withRegistration(ctx, accessToken, func(reg *models.Registration) error {
		if reg.AccessExpired(now) {
			return dErrors.New(dErrors.CodeExpired, "access link has expired")
		}
		if err := s.authorize(ctx, reg, sessionToken); err != nil {
			return err
		}
		if !reg.Status.IsEditable() {
			s.metrics.IncrementUpdates("forbidden")
			return dErrors.Newf(dErrors.CodeForbidden, "registration in status %q cannot be modified", string(reg.Status))
		}
		if err := input.Fields.Validate(now); err != nil {
			s.metrics.IncrementUpdates("validation_failed")
			return err
		}

		input.Fields.Apply(reg, now)

		submitted := false
		if input.Submit {
			if err := reg.Submit(now); err != nil {
				return err
			}
			submitted = true
		}

		if err := s.store.Update(ctx, reg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist update")
		}

		if submitted {
			s.emit(ctx, audit.EventRegistrationSubmitted, reg, "", "", "")
			s.metrics.IncrementUpdates("submitted")
		} else {
			s.emit(ctx, audit.EventRegistrationUpdated, reg, "", "", "")
			s.metrics.IncrementUpdates("applied")
		}

		result = &UpdateResult{Status: reg.Status, Submitted: submitted}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withRegistration loads the record behind a token and runs fn under the
// per-registration lock. The load happens inside the lock: a stale read
// would defeat the serialization it exists for.
func (s *Service) withRegistration(ctx context.Context, accessToken string, fn func(reg *models.Registration) error) error {
	// Resolve the token to an ID first so the lock key is stable even if
	// the token is rotated while we wait.
	reg, err := s.find(ctx, accessToken)
	if err != nil {
		return err
	}

	return s.locks.WithLock(reg.ID.String(), func() error {
		fresh, err := s.find(ctx, accessToken)
		if err != nil {
			return err
		}
		return fn(fresh)
	})
}

// find resolves a token to its record. A registration whose organization
// has been deactivated is unreachable from the public surface; this is the
// one place that cascade is enforced.
func (s *Service) find(ctx context.Context, accessToken string) (*models.Registration, error) {
	reg, err := s.store.FindByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	if s.orgs != nil {
		active, err := s.orgs.IsActive(ctx, reg.OrgID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check organization")
		}
		if !active {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
	}
	return reg, nil
}

// authorize gates read/update access after token resolution. Default mode
// trusts the persisted verified flag; EnforceSessions requires a live
// session token bound to this registration.
func (s *Service) authorize(ctx context.Context, reg *models.Registration, sessionToken string) error {
	if !reg.PhoneVerified && !reg.EmailVerified {
		return dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	if !s.cfg.EnforceSessions {
		return nil
	}
	if s.sessions == nil || sessionToken == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "session required")
	}
	regID, err := s.sessions.Resolve(ctx, sessionToken)
	if err != nil || regID != reg.ID {
		return dErrors.New(dErrors.CodeUnauthorized, "session invalid or expired")
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, reg *models.Registration, channel models.ContactChannel, recipient, code string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendCode(ctx, channel, recipient, code, s.cfg.CodeTTL); err != nil {
		// Delivery failure is not a protocol failure: the code is stored
		// and the applicant can ask for a resend.
		s.logger.ErrorContext(ctx, "code delivery failed",
			"registration_id", reg.ID, "channel", string(channel), "error", err)
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, reg *models.Registration, channel, maskedRecipient, reason string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Publish(ctx, audit.Event{
		Category:        audit.CategoryOf(action),
		Timestamp:       requestcontext.Now(ctx),
		Action:          action,
		OrgID:           reg.OrgID,
		RegistrationID:  reg.ID,
		Channel:         channel,
		MaskedRecipient: maskedRecipient,
		Reason:          reason,
		RequestID:       requestcontext.RequestID(ctx),
	})
}
