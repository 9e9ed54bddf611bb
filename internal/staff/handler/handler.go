// Package handler exposes staff login and account management endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"enrolld/internal/staff/models"
	"enrolld/internal/staff/service"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/httputil"
	"enrolld/pkg/requestcontext"
)

// Service defines the staff operations the handler needs.
type Service interface {
	Login(ctx context.Context, email, password string) (*models.StaffAccount, string, error)
	Create(ctx context.Context, orgID id.OrgID, input service.CreateInput) (*models.StaffAccount, error)
	Get(ctx context.Context, orgID id.OrgID, staffID id.StaffID) (*models.StaffAccount, error)
	List(ctx context.Context, orgID id.OrgID) ([]*models.StaffAccount, error)
}

// Handler wires the staff endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a staff handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the account management endpoints behind staff auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/staff", h.HandleCreate)
	r.Get("/staff", h.HandleList)
	r.Get("/staff/{staffID}", h.HandleGet)
}

// RegisterPublic mounts the unauthenticated login endpoint.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/login", h.HandleLogin)
}

// HandleLogin handles POST /login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, token, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		Staff:       FromStaffAccount(account),
	})
}

// HandleCreate handles POST /staff.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	orgID := requestcontext.OrgID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.Create(ctx, orgID, service.CreateInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromStaffAccount(account))
}

// HandleGet handles GET /staff/{staffID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := requestcontext.OrgID(ctx)

	staffID, err := id.ParseStaffID(chi.URLParam(r, "staffID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "staff account not found"))
		return
	}

	account, err := h.service.Get(ctx, orgID, staffID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStaffAccount(account))
}

// HandleList handles GET /staff.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := requestcontext.OrgID(ctx)

	accounts, err := h.service.List(ctx, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStaffAccounts(accounts))
}
