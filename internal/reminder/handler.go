package reminder

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/httputil"
	"enrolld/pkg/requestcontext"
)

// Handler exposes staff link regeneration.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the endpoints behind staff auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registrations/{registrationID}/access-link", h.HandleGenerateLink)
	r.Post("/registrations/{registrationID}/reminder", h.HandleSendReminder)
}

// LinkResponse carries a freshly issued access link. Code and channel are
// present only for staff-generated links.
type LinkResponse struct {
	AccessLink string    `json:"access_link"`
	Code       string    `json:"code,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// HandleGenerateLink handles POST /registrations/{registrationID}/access-link.
func (h *Handler) HandleGenerateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := requestcontext.OrgID(ctx)

	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "registration not found"))
		return
	}

	result, err := h.service.GenerateAccessLink(ctx, orgID, regID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LinkResponse{
		AccessLink: result.Link,
		Code:       result.Code,
		Channel:    string(result.Channel),
		ExpiresAt:  result.ExpiresAt,
	})
}

// HandleSendReminder handles POST /registrations/{registrationID}/reminder.
func (h *Handler) HandleSendReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := requestcontext.OrgID(ctx)

	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "registration not found"))
		return
	}

	result, err := h.service.SendReminder(ctx, orgID, regID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LinkResponse{
		AccessLink: result.Link,
		ExpiresAt:  result.ExpiresAt,
	})
}
