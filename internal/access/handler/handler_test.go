package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"enrolld/internal/access/handler"
	"enrolld/internal/access/service"
	"enrolld/internal/access/session"
	"enrolld/internal/platform/config"
	"enrolld/internal/platform/logger"
	"enrolld/internal/registration/models"
	"enrolld/internal/registration/store"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/keylock"
	"enrolld/pkg/requestcontext"
)

type recordingNotifier struct {
	codes []string
}

func (n *recordingNotifier) SendCode(_ context.Context, _ models.ContactChannel, _, code string, _ time.Duration) error {
	n.codes = append(n.codes, code)
	return nil
}

type PublicHandlerSuite struct {
	suite.Suite
	router   chi.Router
	store    *store.InMemoryStore
	notifier *recordingNotifier
	now      time.Time
}

func TestPublicHandlerSuite(t *testing.T) {
	suite.Run(t, new(PublicHandlerSuite))
}

func (s *PublicHandlerSuite) SetupTest() {
	s.now = time.Date(2026, time.July, 20, 11, 0, 0, 0, time.UTC)
	s.store = store.NewInMemoryStore()
	s.notifier = &recordingNotifier{}

	cfg := config.VerificationConfig{
		CodeTTL:              10 * time.Minute,
		AccessTokenTTL:       24 * time.Hour,
		SessionTTL:           30 * time.Minute,
		PublicAttemptCeiling: 3,
		ResendAttemptCeiling: 5,
	}
	svc := service.New(s.store, session.NewMemoryStore(), keylock.New(), cfg,
		service.WithNotifier(s.notifier))
	h := handler.New(svc, logger.NewNop())

	s.router = chi.NewRouter()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), s.now)))
		})
	})
	h.Register(s.router)
}

func (s *PublicHandlerSuite) seed() *models.Registration {
	reg, err := models.NewRegistration(id.NewRegistrationID(), id.NewOrgID(), id.NewTemplateID(), "REG-2026-0001", s.now)
	s.Require().NoError(err)
	reg.FirstName = "Tomas"
	reg.Phone = "+420601234567"
	reg.IssueAccessToken("tok", s.now, 24*time.Hour)
	s.Require().NoError(s.store.Create(context.Background(), reg))
	return reg
}

func (s *PublicHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *PublicHandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *PublicHandlerSuite) TestRequestCode() {
	s.seed()

	rec := s.do(http.MethodPost, "/registrations/tok/code", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	resp := s.decode(rec)
	s.Equal("+4*********67", resp["masked_recipient"])
	s.Equal("sms", resp["channel"])
	s.EqualValues(10, resp["expires_in_minutes"])
	// The raw code never appears in the response.
	s.NotContains(rec.Body.String(), s.notifier.codes[0])
}

func (s *PublicHandlerSuite) TestRequestCodeUnknownToken() {
	rec := s.do(http.MethodPost, "/registrations/nope/code", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *PublicHandlerSuite) TestVerifyFlow() {
	s.seed()
	s.do(http.MethodPost, "/registrations/tok/code", nil)
	code := s.notifier.codes[0]

	// Wrong code reports remaining attempts with 422.
	rec := s.do(http.MethodPost, "/registrations/tok/verify", map[string]any{"code": "bogus!"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.EqualValues(2, s.decode(rec)["remaining_attempts"])

	rec = s.do(http.MethodPost, "/registrations/tok/verify", map[string]any{"code": code})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	resp := s.decode(rec)
	s.NotEmpty(resp["session_token"])
	s.NotEmpty(resp["registration_id"])
}

func (s *PublicHandlerSuite) TestVerifyMissingCode() {
	s.seed()
	rec := s.do(http.MethodPost, "/registrations/tok/verify", map[string]any{})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *PublicHandlerSuite) TestVerifyLockout() {
	s.seed()
	s.do(http.MethodPost, "/registrations/tok/code", nil)

	for i := 0; i < 3; i++ {
		s.do(http.MethodPost, "/registrations/tok/verify", map[string]any{"code": "wrong!"})
	}
	rec := s.do(http.MethodPost, "/registrations/tok/verify", map[string]any{"code": "wrong!"})
	s.Equal(http.StatusTooManyRequests, rec.Code)
}

func (s *PublicHandlerSuite) TestExpiredLinkIsGone() {
	reg := s.seed()
	reg.IssueAccessToken("tok", s.now.Add(-48*time.Hour), time.Hour)
	s.Require().NoError(s.store.Update(context.Background(), reg))

	rec := s.do(http.MethodPost, "/registrations/tok/code", nil)
	s.Equal(http.StatusGone, rec.Code)
}

func (s *PublicHandlerSuite) TestResendWithoutPhone() {
	reg := s.seed()
	reg.Phone = ""
	s.Require().NoError(s.store.Update(context.Background(), reg))

	rec := s.do(http.MethodPost, "/registrations/tok/resend", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(true, s.decode(rec)["requires_phone_update"])
}

func (s *PublicHandlerSuite) verify() {
	s.do(http.MethodPost, "/registrations/tok/code", nil)
	code := s.notifier.codes[len(s.notifier.codes)-1]
	rec := s.do(http.MethodPost, "/registrations/tok/verify", map[string]any{"code": code})
	s.Require().Equal(http.StatusOK, rec.Code)
}

func (s *PublicHandlerSuite) TestGetRequiresVerification() {
	s.seed()

	rec := s.do(http.MethodGet, "/registrations/tok", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	s.verify()
	rec = s.do(http.MethodGet, "/registrations/tok", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	resp := s.decode(rec)
	s.Equal("Tomas", resp["first_name"])
	s.Equal(true, resp["editable"])
	// Workflow internals stay hidden from the applicant.
	s.NotContains(resp, "assigned_to")
	s.NotContains(resp, "comments")
}

func (s *PublicHandlerSuite) TestUpdateAndSubmit() {
	s.seed()
	s.verify()

	rec := s.do(http.MethodPatch, "/registrations/tok", map[string]any{
		"last_name": "Novak",
		"submit":    true,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	resp := s.decode(rec)
	s.Equal("pending", resp["status"])
	s.Equal(true, resp["submitted"])
}

func (s *PublicHandlerSuite) TestUpdateBadBirthDate() {
	s.seed()
	s.verify()

	rec := s.do(http.MethodPatch, "/registrations/tok", map[string]any{
		"birth_date": "31-12-1999",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
}
