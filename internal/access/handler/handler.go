package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"enrolld/internal/access/service"
	"enrolld/internal/registration/models"
	"enrolld/pkg/platform/httputil"
	"enrolld/pkg/requestcontext"
)

// Service defines the public access operations the handler needs.
type Service interface {
	RequestCode(ctx context.Context, accessToken string) (*service.CodeIssued, error)
	Verify(ctx context.Context, accessToken, code string) (*service.VerifyResult, error)
	Resend(ctx context.Context, accessToken string) (*service.ResendResult, error)
	GetRegistration(ctx context.Context, accessToken, sessionToken string) (*models.Registration, error)
	Update(ctx context.Context, accessToken, sessionToken string, input service.UpdateInput) (*service.UpdateResult, error)
}

// Handler wires the applicant-facing endpoints to the access engine. These
// routes are unauthenticated: the access token in the path is the only
// credential until a code is verified.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an access handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registrations/{token}/code", h.HandleRequestCode)
	r.Post("/registrations/{token}/verify", h.HandleVerify)
	r.Post("/registrations/{token}/resend", h.HandleResend)
	r.Get("/registrations/{token}", h.HandleGet)
	r.Patch("/registrations/{token}", h.HandleUpdate)
}

// HandleRequestCode handles POST /registrations/{token}/code.
func (h *Handler) HandleRequestCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issued, err := h.service.RequestCode(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.logFailure(ctx, "code request failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CodeIssuedResponse{
		MaskedRecipient:  issued.MaskedRecipient,
		Channel:          string(issued.Channel),
		ExpiresInMinutes: issued.ExpiresInMinutes,
	})
}

// HandleVerify handles POST /registrations/{token}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Verify(ctx, chi.URLParam(r, "token"), req.Code)
	if err != nil {
		h.logFailure(ctx, "verification failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{
		SessionToken:   result.SessionToken,
		RegistrationID: result.RegistrationID.String(),
	})
}

// HandleResend handles POST /registrations/{token}/resend.
func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.Resend(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.logFailure(ctx, "resend failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ResendResponse{
		MaskedRecipient:     result.MaskedRecipient,
		RequiresPhoneUpdate: result.RequiresPhoneUpdate,
	})
}

// HandleGet handles GET /registrations/{token}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reg, err := h.service.GetRegistration(ctx, chi.URLParam(r, "token"), sessionToken(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistration(reg))
}

// HandleUpdate handles PATCH /registrations/{token}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Update(ctx, chi.URLParam(r, "token"), sessionToken(r), service.UpdateInput{
		Fields: req.Fields(),
		Submit: req.Submit,
	})
	if err != nil {
		h.logFailure(ctx, "self-service update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UpdateResponse{
		Status:    string(result.Status),
		Submitted: result.Submitted,
	})
}

// sessionToken extracts the session credential from the Authorization
// header. Absent header means no session, which the engine may accept
// depending on configuration.
func sessionToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

// logFailure records a failed public operation without ever logging the
// token or code involved.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"client_ip", requestcontext.ClientIP(ctx),
		"error", err,
	)
}
