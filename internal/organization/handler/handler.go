// Package handler exposes the back-office organization endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"enrolld/internal/organization/models"
	"enrolld/internal/organization/service"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/httputil"
	"enrolld/pkg/requestcontext"
)

// Service defines the organization operations the handler needs.
type Service interface {
	Create(ctx context.Context, input service.CreateInput) (*models.Organization, error)
	Get(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	List(ctx context.Context) ([]*models.Organization, error)
	Deactivate(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	Reactivate(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	CreateTemplate(ctx context.Context, orgID id.OrgID, input service.TemplateInput) (*models.FormTemplate, error)
	GetTemplate(ctx context.Context, orgID id.OrgID, templateID id.TemplateID) (*models.FormTemplate, error)
	ListTemplates(ctx context.Context, orgID id.OrgID) ([]*models.FormTemplate, error)
}

// Handler wires the organization endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an organization handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the organization endpoints. These are administrative:
// the caller is expected to mount them behind staff authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/organizations", h.HandleCreate)
	r.Get("/organizations", h.HandleList)
	r.Get("/organizations/{orgID}", h.HandleGet)
	r.Post("/organizations/{orgID}/deactivate", h.HandleDeactivate)
	r.Post("/organizations/{orgID}/reactivate", h.HandleReactivate)
	r.Post("/organizations/{orgID}/templates", h.HandleCreateTemplate)
	r.Get("/organizations/{orgID}/templates", h.HandleListTemplates)
	r.Get("/organizations/{orgID}/templates/{templateID}", h.HandleGetTemplate)
}

// HandleCreate handles POST /organizations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	org, err := h.service.Create(ctx, service.CreateInput{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromOrganization(org))
}

// HandleList handles GET /organizations.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOrganizations(orgs))
}

// HandleGet handles GET /organizations/{orgID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	org, err := h.service.Get(r.Context(), orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOrganization(org))
}

// HandleDeactivate handles POST /organizations/{orgID}/deactivate.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	org, err := h.service.Deactivate(r.Context(), orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOrganization(org))
}

// HandleReactivate handles POST /organizations/{orgID}/reactivate.
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	org, err := h.service.Reactivate(r.Context(), orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOrganization(org))
}

// HandleCreateTemplate handles POST /organizations/{orgID}/templates.
func (h *Handler) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateTemplateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tpl, err := h.service.CreateTemplate(ctx, orgID, service.TemplateInput{
		Name:   req.Name,
		Fields: req.Definitions(),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromTemplate(tpl))
}

// HandleListTemplates handles GET /organizations/{orgID}/templates.
func (h *Handler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	tpls, err := h.service.ListTemplates(r.Context(), orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTemplates(tpls))
}

// HandleGetTemplate handles GET /organizations/{orgID}/templates/{templateID}.
func (h *Handler) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "template not found"))
		return
	}

	tpl, err := h.service.GetTemplate(r.Context(), orgID, templateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTemplate(tpl))
}

func (h *Handler) orgID(w http.ResponseWriter, r *http.Request) (id.OrgID, bool) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "organization not found"))
		return id.OrgID{}, false
	}
	return orgID, true
}
