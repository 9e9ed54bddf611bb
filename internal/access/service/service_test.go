package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"enrolld/internal/access/service"
	"enrolld/internal/access/session"
	"enrolld/internal/platform/config"
	"enrolld/internal/registration/models"
	"enrolld/internal/registration/store"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/keylock"
	"enrolld/pkg/requestcontext"
)

type sentCode struct {
	channel   models.ContactChannel
	recipient string
	code      string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentCode
}

func (n *fakeNotifier) SendCode(_ context.Context, channel models.ContactChannel, recipient, code string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentCode{channel: channel, recipient: recipient, code: code})
	return nil
}

func (n *fakeNotifier) last() sentCode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type AccessSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemoryStore
	sessions *session.MemoryStore
	notifier *fakeNotifier
	cfg      config.VerificationConfig
	svc      *service.Service
	now      time.Time
}

func TestAccessSuite(t *testing.T) {
	suite.Run(t, new(AccessSuite))
}

func (s *AccessSuite) SetupTest() {
	s.now = time.Date(2026, time.July, 8, 14, 0, 0, 0, time.UTC)
	s.store = store.NewInMemoryStore()
	s.sessions = session.NewMemoryStore().WithClock(func() time.Time { return s.now })
	s.notifier = &fakeNotifier{}
	s.cfg = config.VerificationConfig{
		CodeTTL:              10 * time.Minute,
		AccessTokenTTL:       24 * time.Hour,
		ReminderTokenTTL:     7 * 24 * time.Hour,
		SessionTTL:           30 * time.Minute,
		PublicAttemptCeiling: 3,
		ResendAttemptCeiling: 5,
	}
	s.rebuild()
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *AccessSuite) rebuild() {
	s.svc = service.New(s.store, s.sessions, keylock.New(), s.cfg,
		service.WithNotifier(s.notifier))
}

// seed creates a registration reachable through "tok" with a phone on file.
func (s *AccessSuite) seed() *models.Registration {
	reg, err := models.NewRegistration(id.NewRegistrationID(), id.NewOrgID(), id.NewTemplateID(), "REG-2026-0001", s.now)
	s.Require().NoError(err)
	reg.FirstName = "Leila"
	reg.LastName = "Haddad"
	reg.Email = "leila.haddad@example.com"
	reg.Phone = "+33612345678"
	reg.IssueAccessToken("tok", s.now, s.cfg.AccessTokenTTL)
	s.Require().NoError(s.store.Create(s.ctx, reg))
	return reg
}

func (s *AccessSuite) stored(reg *models.Registration) *models.Registration {
	fresh, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	return fresh
}

func (s *AccessSuite) requestCode() string {
	_, err := s.svc.RequestCode(s.ctx, "tok")
	s.Require().NoError(err)
	return s.notifier.last().code
}

func (s *AccessSuite) TestRequestCodeUnknownToken() {
	_, err := s.svc.RequestCode(s.ctx, "no-such-token")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AccessSuite) TestRequestCodeExpiredLink() {
	reg := s.seed()
	reg.IssueAccessToken("tok", s.now.Add(-48*time.Hour), time.Hour)
	s.Require().NoError(s.store.Update(s.ctx, reg))

	_, err := s.svc.RequestCode(s.ctx, "tok")
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))
}

func (s *AccessSuite) TestRequestCodeNoPhone() {
	reg := s.seed()
	reg.Phone = ""
	s.Require().NoError(s.store.Update(s.ctx, reg))

	_, err := s.svc.RequestCode(s.ctx, "tok")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *AccessSuite) TestRequestCodeIssuesAndMasks() {
	reg := s.seed()

	issued, err := s.svc.RequestCode(s.ctx, "tok")
	s.Require().NoError(err)
	s.Equal("+3********78", issued.MaskedRecipient)
	s.Equal(models.ChannelSMS, issued.Channel)
	s.Equal(10, issued.ExpiresInMinutes)

	fresh := s.stored(reg)
	s.Len(fresh.SMSVerificationCode, 6)
	s.Equal(0, fresh.VerificationAttempts)
	s.Equal(fresh.SMSVerificationCode, s.notifier.last().code)
}

func (s *AccessSuite) TestRequestCodeResetsAttempts() {
	reg := s.seed()
	s.requestCode()

	_, err := s.svc.Verify(s.ctx, "tok", "000000")
	s.Require().Error(err)
	s.Equal(1, s.stored(reg).VerificationAttempts)

	s.requestCode()
	s.Equal(0, s.stored(reg).VerificationAttempts)
}

func (s *AccessSuite) TestVerifySuccess() {
	reg := s.seed()
	code := s.requestCode()

	result, err := s.svc.Verify(s.ctx, "tok", code)
	s.Require().NoError(err)
	s.Equal(reg.ID, result.RegistrationID)
	s.NotEmpty(result.SessionToken)

	fresh := s.stored(reg)
	s.True(fresh.PhoneVerified)
	s.Empty(fresh.SMSVerificationCode)
	s.Equal(0, fresh.VerificationAttempts)

	// The session resolves to this registration.
	resolved, err := s.sessions.Resolve(s.ctx, result.SessionToken)
	s.Require().NoError(err)
	s.Equal(reg.ID, resolved)
}

func (s *AccessSuite) TestVerifyCodeIsSingleUse() {
	s.seed()
	code := s.requestCode()

	_, err := s.svc.Verify(s.ctx, "tok", code)
	s.Require().NoError(err)

	_, err = s.svc.Verify(s.ctx, "tok", code)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
}

func (s *AccessSuite) TestVerifyMismatchCountsDown() {
	s.seed()
	s.requestCode()

	for i := 1; i <= 3; i++ {
		_, err := s.svc.Verify(s.ctx, "tok", "000000")
		s.Require().Error(err)
		var de *dErrors.Error
		s.Require().ErrorAs(err, &de)
		s.Equal(dErrors.CodeInvalidCode, de.Code)
		s.Equal(3-i, de.Remaining)
	}

	// Ceiling reached: the next attempt is refused outright.
	_, err := s.svc.Verify(s.ctx, "tok", "000000")
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyAttempts))
}

func (s *AccessSuite) TestVerifyLockoutBlocksCorrectCode() {
	s.seed()
	code := s.requestCode()

	for i := 0; i < 3; i++ {
		_, _ = s.svc.Verify(s.ctx, "tok", "000000")
	}

	_, err := s.svc.Verify(s.ctx, "tok", code)
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyAttempts))
}

func (s *AccessSuite) TestVerifyExpiredCodeNotCounted() {
	reg := s.seed()
	code := s.requestCode()

	s.now = s.now.Add(11 * time.Minute)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	_, err := s.svc.Verify(s.ctx, "tok", code)
	s.True(dErrors.HasCode(err, dErrors.CodeCodeExpired))
	s.Equal(0, s.stored(reg).VerificationAttempts)
}

func (s *AccessSuite) TestVerifyExpiredLink() {
	reg := s.seed()
	code := s.requestCode()

	reg = s.stored(reg)
	reg.IssueAccessToken("tok", s.now.Add(-48*time.Hour), time.Hour)
	s.Require().NoError(s.store.Update(s.ctx, reg))

	_, err := s.svc.Verify(s.ctx, "tok", code)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))
}

func (s *AccessSuite) TestConfigurableCeiling() {
	s.cfg.PublicAttemptCeiling = 5
	s.rebuild()
	s.seed()
	s.requestCode()

	for i := 0; i < 5; i++ {
		_, err := s.svc.Verify(s.ctx, "tok", "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	}
	_, err := s.svc.Verify(s.ctx, "tok", "000000")
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyAttempts))
}

// TestStaffIssuedCodeUsesResendCeiling covers the split ceiling: a code
// issued on a staff member's behalf tolerates ResendAttemptCeiling wrong
// guesses, not the lower public ceiling.
func (s *AccessSuite) TestStaffIssuedCodeUsesResendCeiling() {
	reg := s.seed()
	reg.IssueStaffCode("482913", s.now, 10*time.Minute)
	s.Require().NoError(s.store.Update(s.ctx, reg))

	for i := 1; i <= 5; i++ {
		_, err := s.svc.Verify(s.ctx, "tok", "000000")
		s.Require().Error(err)
		var de *dErrors.Error
		s.Require().ErrorAs(err, &de)
		s.Equal(dErrors.CodeInvalidCode, de.Code)
		s.Equal(5-i, de.Remaining)
	}

	_, err := s.svc.Verify(s.ctx, "tok", "482913")
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyAttempts))
}

func (s *AccessSuite) TestStaffIssuedCodeVerifies() {
	reg := s.seed()
	reg.IssueStaffCode("482913", s.now, 10*time.Minute)
	s.Require().NoError(s.store.Update(s.ctx, reg))

	// Burn past the public ceiling; the staff code is still live.
	for i := 0; i < 4; i++ {
		_, _ = s.svc.Verify(s.ctx, "tok", "000000")
	}

	result, err := s.svc.Verify(s.ctx, "tok", "482913")
	s.Require().NoError(err)
	s.NotEmpty(result.SessionToken)
}

// TestPublicReissueRestoresPublicCeiling checks the origin does not stick: a
// publicly requested code after a staff-issued one locks at the public
// ceiling again.
func (s *AccessSuite) TestPublicReissueRestoresPublicCeiling() {
	reg := s.seed()
	reg.IssueStaffCode("482913", s.now, 10*time.Minute)
	s.Require().NoError(s.store.Update(s.ctx, reg))

	s.requestCode()

	for i := 0; i < 3; i++ {
		_, err := s.svc.Verify(s.ctx, "tok", "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	}
	_, err := s.svc.Verify(s.ctx, "tok", "000000")
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyAttempts))
}

// TestParallelWrongGuesses drives N concurrent wrong submissions and
// requires every one of them to be counted. Each guess must observe the
// previous increment; anything less means the ceiling can be raced past.
func (s *AccessSuite) TestParallelWrongGuesses() {
	s.cfg.PublicAttemptCeiling = 50
	s.rebuild()
	reg := s.seed()
	s.requestCode()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.svc.Verify(s.ctx, "tok", fmt.Sprintf("wrong-%02d", i))
		}(i)
	}
	wg.Wait()

	s.Equal(n, s.stored(reg).VerificationAttempts)
}

func (s *AccessSuite) TestResendNoPhone() {
	reg := s.seed()
	reg.Phone = ""
	s.Require().NoError(s.store.Update(s.ctx, reg))

	result, err := s.svc.Resend(s.ctx, "tok")
	s.Require().NoError(err)
	s.True(result.RequiresPhoneUpdate)
	s.Empty(result.MaskedRecipient)
}

func (s *AccessSuite) TestResendSupersedesCode() {
	s.seed()
	oldCode := s.requestCode()

	result, err := s.svc.Resend(s.ctx, "tok")
	s.Require().NoError(err)
	s.False(result.RequiresPhoneUpdate)
	s.Equal("+3********78", result.MaskedRecipient)

	newCode := s.notifier.last().code
	if newCode == oldCode {
		// One-in-a-million collision; the superseding still holds.
		return
	}
	_, err = s.svc.Verify(s.ctx, "tok", oldCode)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))

	_, err = s.svc.Verify(s.ctx, "tok", newCode)
	s.NoError(err)
}

func (s *AccessSuite) verify() string {
	code := s.requestCode()
	result, err := s.svc.Verify(s.ctx, "tok", code)
	s.Require().NoError(err)
	return result.SessionToken
}

func (s *AccessSuite) TestGetRequiresVerification() {
	s.seed()

	_, err := s.svc.GetRegistration(s.ctx, "tok", "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.verify()
	reg, err := s.svc.GetRegistration(s.ctx, "tok", "")
	s.Require().NoError(err)
	s.Equal("Leila", reg.FirstName)
}

func (s *AccessSuite) TestGetWithSessionEnforcement() {
	s.cfg.EnforceSessions = true
	s.rebuild()
	s.seed()
	sessionToken := s.verify()

	_, err := s.svc.GetRegistration(s.ctx, "tok", "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.svc.GetRegistration(s.ctx, "tok", "forged")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.svc.GetRegistration(s.ctx, "tok", sessionToken)
	s.NoError(err)

	// Expired sessions stop working.
	s.now = s.now.Add(31 * time.Minute)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	_, err = s.svc.GetRegistration(s.ctx, "tok", sessionToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *AccessSuite) TestUpdatePartialFields() {
	reg := s.seed()
	s.verify()

	_, err := s.svc.Update(s.ctx, "tok", "", service.UpdateInput{
		Fields: models.FieldUpdate{FirstName: "Leyla"},
	})
	s.Require().NoError(err)

	fresh := s.stored(reg)
	s.Equal("Leyla", fresh.FirstName)
	// Untouched fields keep their values.
	s.Equal("Haddad", fresh.LastName)
	s.Equal("leila.haddad@example.com", fresh.Email)
}

func (s *AccessSuite) TestUpdateValidationShortCircuits() {
	reg := s.seed()
	s.verify()

	_, err := s.svc.Update(s.ctx, "tok", "", service.UpdateInput{
		Fields: models.FieldUpdate{FirstName: "Leyla", Email: "broken"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	// Nothing was applied, not even the valid field.
	s.Equal("Leila", s.stored(reg).FirstName)
}

func (s *AccessSuite) TestUpdateSubmitTransitionsDraft() {
	reg := s.seed()
	s.verify()

	result, err := s.svc.Update(s.ctx, "tok", "", service.UpdateInput{
		Fields: models.FieldUpdate{FirstName: "Leyla"},
		Submit: true,
	})
	s.Require().NoError(err)
	s.True(result.Submitted)
	s.Equal(models.StatusPending, result.Status)
	s.NotNil(s.stored(reg).SubmittedAt)
}

func (s *AccessSuite) TestUpdateForbiddenWhenNotEditable() {
	reg := s.seed()
	s.verify()

	reg = s.stored(reg)
	reg.Status = models.StatusValidated
	s.Require().NoError(s.store.Update(s.ctx, reg))

	_, err := s.svc.Update(s.ctx, "tok", "", service.UpdateInput{
		Fields: models.FieldUpdate{FirstName: "Leyla"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

type fakeOrgGate struct {
	active bool
}

func (g *fakeOrgGate) IsActive(context.Context, id.OrgID) (bool, error) {
	return g.active, nil
}

func (s *AccessSuite) TestInactiveOrganizationHidesRegistration() {
	gate := &fakeOrgGate{active: true}
	s.svc = service.New(s.store, s.sessions, keylock.New(), s.cfg,
		service.WithNotifier(s.notifier), service.WithOrgGate(gate))
	s.seed()

	_, err := s.svc.RequestCode(s.ctx, "tok")
	s.Require().NoError(err)

	gate.active = false
	_, err = s.svc.RequestCode(s.ctx, "tok")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AccessSuite) TestUpdateUnverifiedIsNotFound() {
	s.seed()

	_, err := s.svc.Update(s.ctx, "tok", "", service.UpdateInput{
		Fields: models.FieldUpdate{FirstName: "Leyla"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
