package reminder

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

	"enrolld/internal/platform/config"
	"enrolld/internal/platform/logger"
	"enrolld/internal/registration/models"
	"enrolld/internal/registration/store"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/keylock"
	"enrolld/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite

	router chi.Router
	store  *store.InMemoryStore
	sender *capturingSender
	orgID  id.OrgID
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	s.orgID = id.NewOrgID()
	s.store = store.NewInMemoryStore()
	s.sender = &capturingSender{}

	svc := New(s.store, keylock.New(),
		config.ReminderConfig{StaleAfter: 72 * time.Hour},
		"https://enroll.example.com",
		WithLogger(logger.NewNop()),
		WithSender(s.sender),
	)
	h := NewHandler(svc, logger.NewNop())

	s.router = chi.NewRouter()
	// Stand-in for the staff auth middleware.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithOrgID(r.Context(), s.orgID)
			ctx = requestcontext.WithStaffID(ctx, id.NewStaffID())
			ctx = requestcontext.WithTime(ctx, s.now)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.Register(s.router)
}

func (s *HandlerSuite) seed(email string) *models.Registration {
	reg, err := models.NewRegistration(id.NewRegistrationID(), s.orgID, id.NewTemplateID(), "REG-2026-0001", s.now)
	s.Require().NoError(err)
	reg.Email = email
	s.Require().NoError(s.store.Create(context.Background(), reg))
	return reg
}

func (s *HandlerSuite) post(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, &bytes.Buffer{})
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestGenerateLink() {
	reg := s.seed("yusuf@example.com")

	rec := s.post("/registrations/" + reg.ID.String() + "/access-link")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp LinkResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Contains(resp.AccessLink, "https://enroll.example.com/public/registrations/")
	s.Regexp(`^\d{6}$`, resp.Code)
	s.Equal("email", resp.Channel)
}

func (s *HandlerSuite) TestGenerateLinkUnknownRegistration() {
	rec := s.post("/registrations/" + id.NewRegistrationID().String() + "/access-link")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestSendReminder() {
	reg := s.seed("yusuf@example.com")

	rec := s.post("/registrations/" + reg.ID.String() + "/reminder")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp LinkResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Empty(resp.Code)
	s.Require().Len(s.sender.sent, 1)
	s.Equal(resp.AccessLink, s.sender.sent[0].link)
}

func (s *HandlerSuite) TestSendReminderWithoutEmail() {
	reg := s.seed("")

	rec := s.post("/registrations/" + reg.ID.String() + "/reminder")
	s.Equal(http.StatusBadRequest, rec.Code)
}
