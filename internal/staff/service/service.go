// Package service manages staff accounts and authentication. Successful
// logins yield an HS256 JWT carrying the staff and organization identity;
// the auth middleware validates it on every staff request.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"enrolld/internal/staff/models"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/audit"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/requestcontext"
)

// Store is the staff persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, account *models.StaffAccount) error
	FindByID(ctx context.Context, staffID id.StaffID) (*models.StaffAccount, error)
	FindByEmail(ctx context.Context, email string) (*models.StaffAccount, error)
	Update(ctx context.Context, account *models.StaffAccount) error
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.StaffAccount, error)
}

// Service authenticates staff and manages their accounts.
type Service struct {
	store      Store
	signingKey []byte
	tokenTTL   time.Duration
	logger     *slog.Logger
	auditor    audit.Publisher
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

// WithTokenTTL sets the staff access token validity window.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

// New constructs a Service. The signing key must match across all
// instances validating each other's tokens.
func New(st Store, signingKey string, opts ...Option) *Service {
	s := &Service{
		store:      st,
		signingKey: []byte(signingKey),
		tokenTTL:   8 * time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the data for a new staff account.
type CreateInput struct {
	Email    string
	Name     string
	Password string
	Role     models.Role
}

// Create provisions a staff account in an organization.
func (s *Service) Create(ctx context.Context, orgID id.OrgID, input CreateInput) (*models.StaffAccount, error) {
	now := requestcontext.Now(ctx)

	account, err := models.NewStaffAccount(id.NewStaffID(), orgID, input.Email, input.Name, input.Password, input.Role, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create staff account")
	}

	s.logger.InfoContext(ctx, "staff account created",
		"staff_id", account.ID, "org_id", orgID, "role", string(account.Role))
	return account, nil
}

// Get returns a staff account scoped to the caller's organization.
func (s *Service) Get(ctx context.Context, orgID id.OrgID, staffID id.StaffID) (*models.StaffAccount, error) {
	account, err := s.store.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "staff account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load staff account")
	}
	if account.OrgID != orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "staff account not found")
	}
	return account, nil
}

// List returns an organization's staff accounts ordered by email.
func (s *Service) List(ctx context.Context, orgID id.OrgID) ([]*models.StaffAccount, error) {
	accounts, err := s.store.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list staff accounts")
	}
	return accounts, nil
}

// Login authenticates by email and password and returns a signed access
// token. Unknown emails and wrong passwords produce the same error so the
// response does not reveal which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (*models.StaffAccount, string, error) {
	now := requestcontext.Now(ctx)

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.emitLoginFailed(ctx, id.OrgID{}, id.StaffID{})
			return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load staff account")
	}

	if !account.CheckPassword(password) {
		s.emitLoginFailed(ctx, account.OrgID, account.ID)
		s.logger.WarnContext(ctx, "staff login failed",
			"staff_id", account.ID, "request_id", requestcontext.RequestID(ctx))
		return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	tokenString, err := s.issueToken(account, now)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}

	account.RecordLogin(now)
	if err := s.store.Update(ctx, account); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login")
	}

	s.emit(ctx, audit.EventStaffLoggedIn, account.OrgID, account.ID)
	s.logger.InfoContext(ctx, "staff logged in", "staff_id", account.ID)
	return account, tokenString, nil
}

// staffClaims is the JWT payload for staff access tokens.
type staffClaims struct {
	OrgID string `json:"org"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (s *Service) issueToken(account *models.StaffAccount, now time.Time) (string, error) {
	claims := staffClaims{
		OrgID: account.OrgID.String(),
		Role:  string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// ValidateToken parses and verifies a staff access token, returning the
// identity it carries. Satisfies the auth middleware's validator contract.
func (s *Service) ValidateToken(tokenString string) (id.StaffID, id.OrgID, error) {
	claims := &staffClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	})
	if err != nil {
		return id.StaffID{}, id.OrgID{}, err
	}

	staffID, err := id.ParseStaffID(claims.Subject)
	if err != nil {
		return id.StaffID{}, id.OrgID{}, err
	}
	orgID, err := id.ParseOrgID(claims.OrgID)
	if err != nil {
		return id.StaffID{}, id.OrgID{}, err
	}
	return staffID, orgID, nil
}

func (s *Service) emitLoginFailed(ctx context.Context, orgID id.OrgID, staffID id.StaffID) {
	s.emit(ctx, audit.EventStaffLoginFailed, orgID, staffID)
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, orgID id.OrgID, staffID id.StaffID) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOf(action),
		Timestamp: requestcontext.Now(ctx),
		Action:    action,
		OrgID:     orgID,
		ActorID:   staffID,
		RequestID: requestcontext.RequestID(ctx),
	})
}
