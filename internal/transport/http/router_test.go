package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	accesshandler "enrolld/internal/access/handler"
	accessservice "enrolld/internal/access/service"
	"enrolld/internal/access/session"
	orghandler "enrolld/internal/organization/handler"
	orgservice "enrolld/internal/organization/service"
	orgstore "enrolld/internal/organization/store"
	"enrolld/internal/platform/config"
	"enrolld/internal/platform/logger"
	"enrolld/internal/ratelimit"
	"enrolld/internal/ratelimit/store/bucket"
	reghandler "enrolld/internal/registration/handler"
	"enrolld/internal/registration/models"
	regservice "enrolld/internal/registration/service"
	regstore "enrolld/internal/registration/store"
	"enrolld/internal/reminder"
	staffhandler "enrolld/internal/staff/handler"
	staffservice "enrolld/internal/staff/service"
	staffstore "enrolld/internal/staff/store"
	transporthttp "enrolld/internal/transport/http"
	"enrolld/pkg/platform/keylock"
	"enrolld/pkg/platform/middleware/auth"
)

// recordingNotifier captures codes so tests can replay them.
type recordingNotifier struct {
	mu    sync.Mutex
	codes []string
}

func (n *recordingNotifier) SendCode(_ context.Context, _ models.ContactChannel, _, code string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes = append(n.codes, code)
	return nil
}

func (n *recordingNotifier) lastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		return ""
	}
	return n.codes[len(n.codes)-1]
}

type RouterSuite struct {
	suite.Suite

	router   chi.Router
	notifier *recordingNotifier
	orgSvc   *orgservice.Service
	staffSvc *staffservice.Service
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	log := logger.NewNop()
	locks := keylock.New()
	verification := config.VerificationConfig{
		CodeTTL:              10 * time.Minute,
		AccessTokenTTL:       24 * time.Hour,
		ReminderTokenTTL:     7 * 24 * time.Hour,
		SessionTTL:           30 * time.Minute,
		PublicAttemptCeiling: 3,
		ResendAttemptCeiling: 5,
	}

	registrations := regstore.NewInMemoryStore()
	s.notifier = &recordingNotifier{}

	s.orgSvc = orgservice.New(orgstore.NewInMemoryStore(), orgstore.NewInMemoryTemplateStore(), orgservice.WithLogger(log))
	regSvc := regservice.New(registrations, locks,
		regservice.WithLogger(log), regservice.WithOrgGate(s.orgSvc))
	accessSvc := accessservice.New(registrations, session.NewMemoryStore(), locks, verification,
		accessservice.WithLogger(log),
		accessservice.WithNotifier(s.notifier),
		accessservice.WithOrgGate(s.orgSvc))
	s.staffSvc = staffservice.New(staffstore.NewInMemoryStore(), "router-test-key", staffservice.WithLogger(log))
	reminderSvc := reminder.New(registrations, locks,
		config.ReminderConfig{StaleAfter: 72 * time.Hour}, "http://localhost:8080",
		reminder.WithLogger(log))

	limiter := ratelimit.NewLimiter(bucket.NewInMemoryStore(), ratelimit.WithLogger(log))

	s.router = transporthttp.New(transporthttp.Config{
		Registration: reghandler.New(regSvc, log),
		Access:       accesshandler.New(accessSvc, log),
		Organization: orghandler.New(s.orgSvc, log),
		Staff:        staffhandler.New(s.staffSvc, log),
		Reminder:     reminder.NewHandler(reminderSvc, log),
		Auth:         auth.RequireStaff(s.staffSvc, log),
		RateLimit:    ratelimit.NewMiddleware(limiter, log),
		Logger:       log,
	})
}

func (s *RouterSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.7:52100"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *RouterSuite) seedOrg() string {
	ctx := context.Background()
	org, err := s.orgSvc.Create(ctx, orgservice.CreateInput{Name: "Lyceum North"})
	s.Require().NoError(err)
	return org.ID.String()
}

func (s *RouterSuite) seedStaff() string {
	ctx := context.Background()
	org, err := s.orgSvc.Create(ctx, orgservice.CreateInput{Name: "Staff Org"})
	s.Require().NoError(err)
	_, err = s.staffSvc.Create(ctx, org.ID, staffservice.CreateInput{
		Email:    "admin@lyceum.example",
		Password: "correct-horse-battery",
		Role:     "admin",
	})
	s.Require().NoError(err)

	rec := s.do(http.MethodPost, "/staff/login", "", map[string]any{
		"email":    "admin@lyceum.example",
		"password": "correct-horse-battery",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	return s.decode(rec)["access_token"].(string)
}

func (s *RouterSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", s.decode(rec)["status"])
}

func (s *RouterSuite) TestMetricsExposed() {
	rec := s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestPublicVerificationFlow() {
	orgID := s.seedOrg()

	rec := s.do(http.MethodPost, "/public/organizations/"+orgID+"/registrations", "", map[string]any{
		"template_id": "3b7e7a1e-98f1-4c8c-b9f4-0f8f8a9d2f1a",
		"first_name":  "Yusuf",
		"last_name":   "Kaya",
		"email":       "yusuf.kaya@example.com",
		"phone":       "+33612345678",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	accessToken := s.decode(rec)["access_token"].(string)
	s.Require().NotEmpty(accessToken)

	rec = s.do(http.MethodPost, "/public/registrations/"+accessToken+"/code", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	code := s.notifier.lastCode()
	s.Require().NotEmpty(code)

	rec = s.do(http.MethodPost, "/public/registrations/"+accessToken+"/verify", "", map[string]any{
		"code": code,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.NotEmpty(s.decode(rec)["session_token"])

	rec = s.do(http.MethodGet, "/public/registrations/"+accessToken, "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, "/public/registrations/"+accessToken, "", map[string]any{
		"submit": true,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("pending", s.decode(rec)["status"])
}

func (s *RouterSuite) TestPublicStartUnknownOrgNotFound() {
	rec := s.do(http.MethodPost, "/public/organizations/1db5cbb4-64d2-4e26-8b5d-0c6a9f2a6a11/registrations", "", map[string]any{
		"template_id": "3b7e7a1e-98f1-4c8c-b9f4-0f8f8a9d2f1a",
	})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterSuite) TestStaffMountRequiresAuth() {
	rec := s.do(http.MethodGet, "/staff/registrations", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestStaffFlow() {
	token := s.seedStaff()

	rec := s.do(http.MethodGet, "/staff/registrations", token, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/staff/organizations", token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/staff/staff", token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestCodeRequestsAreThrottled() {
	orgID := s.seedOrg()

	rec := s.do(http.MethodPost, "/public/organizations/"+orgID+"/registrations", "", map[string]any{
		"template_id": "3b7e7a1e-98f1-4c8c-b9f4-0f8f8a9d2f1a",
		"phone":       "+33612345678",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	accessToken := s.decode(rec)["access_token"].(string)

	// Default code budget is 5/min per IP.
	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = s.do(http.MethodPost, "/public/registrations/"+accessToken+"/code", "", nil)
	}
	s.Equal(http.StatusTooManyRequests, last.Code)
	s.NotEmpty(last.Header().Get("Retry-After"))
}
