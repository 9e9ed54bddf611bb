package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"enrolld/internal/registration/models"
	"enrolld/internal/registration/service"
	"enrolld/internal/registration/store"
	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/httputil"
	"enrolld/pkg/requestcontext"
)

// Service defines the registration operations the handler needs.
type Service interface {
	Create(ctx context.Context, orgID id.OrgID, input service.CreateInput) (*models.Registration, error)
	Get(ctx context.Context, orgID id.OrgID, regID id.RegistrationID) (*models.Registration, error)
	List(ctx context.Context, orgID id.OrgID, filter store.Filter) ([]*models.Registration, int, error)
	ApplyAction(ctx context.Context, orgID id.OrgID, regID id.RegistrationID, action models.StaffAction, input service.ActionInput) (*models.Registration, error)
	Export(ctx context.Context, orgID id.OrgID, filter store.Filter, format service.ExportFormat, w io.Writer) error
	StartPublic(ctx context.Context, orgID id.OrgID, input service.CreateInput) (*models.Registration, string, error)
}

// Handler wires the staff registration endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registration handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the staff registration endpoints on the router. The
// caller is expected to have staff authentication middleware upstream.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registrations", h.HandleCreate)
	r.Get("/registrations", h.HandleList)
	r.Get("/registrations/export", h.HandleExport)
	r.Get("/registrations/{registrationID}", h.HandleGet)
	r.Post("/registrations/{registrationID}/actions", h.HandleAction)
}

// RegisterPublic mounts the unauthenticated start endpoint.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/organizations/{orgID}/registrations", h.HandleStart)
}

// HandleStart handles POST /organizations/{orgID}/registrations: an
// applicant begins a registration and receives the access token that all
// subsequent public calls are keyed on. This response is the only place
// the raw token ever leaves the system.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "organization not found"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	reg, accessToken, err := h.service.StartPublic(ctx, orgID, service.CreateInput{
		TemplateID: req.ParsedTemplateID(),
		Fields:     req.Fields(),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, StartResponse{
		RegistrationNumber: reg.RegistrationNumber,
		AccessToken:        accessToken,
		Status:             string(reg.Status),
	})
}

// HandleCreate handles POST /registrations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	orgID := requestcontext.OrgID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	reg, err := h.service.Create(ctx, orgID, service.CreateInput{
		TemplateID: req.ParsedTemplateID(),
		Fields:     req.Fields(),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration created",
		"request_id", requestID,
		"registration_id", reg.ID,
		"registration_number", reg.RegistrationNumber,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromRegistration(reg))
}

// HandleGet handles GET /registrations/{registrationID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := requestcontext.OrgID(ctx)

	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "registration not found"))
		return
	}

	reg, err := h.service.Get(ctx, orgID, regID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistration(reg))
}

// HandleList handles GET /registrations.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := requestcontext.OrgID(ctx)

	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	regs, total, err := h.service.List(ctx, orgID, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromList(regs, total, filter))
}

// HandleAction handles POST /registrations/{registrationID}/actions.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	orgID := requestcontext.OrgID(ctx)

	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "registration not found"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[ActionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	reg, err := h.service.ApplyAction(ctx, orgID, regID, req.ParsedAction(), req.Input())
	if err != nil {
		h.logger.WarnContext(ctx, "staff action failed",
			"request_id", requestID,
			"registration_id", regID,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistration(reg))
}

// HandleExport handles GET /registrations/export.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := requestcontext.OrgID(ctx)

	format, err := service.ParseExportFormat(queryDefault(r, "format", "csv"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	switch format {
	case service.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="registrations.csv"`)
	case service.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	}

	if err := h.service.Export(ctx, orgID, filter, format, w); err != nil {
		// Headers may already be gone; log and give up on the response.
		h.logger.ErrorContext(ctx, "export failed",
			"request_id", requestcontext.RequestID(ctx),
			"format", string(format),
			"error", err,
		)
	}
}

func filterFromQuery(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	filter := store.Filter{
		Search:   q.Get("search"),
		SortBy:   q.Get("sort"),
		SortDesc: q.Get("order") == "desc",
	}

	if raw := q.Get("status"); raw != "" {
		status := models.Status(raw)
		if !status.IsValid() {
			return store.Filter{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", raw)
		}
		filter.Status = status
	}
	if raw := q.Get("assigned_to"); raw != "" {
		staffID, err := id.ParseStaffID(raw)
		if err != nil {
			return store.Filter{}, err
		}
		filter.AssignedTo = staffID
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return store.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := q.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 {
			return store.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "per_page must be a positive integer")
		}
		filter.PerPage = perPage
	}
	return filter, nil
}

func queryDefault(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}
