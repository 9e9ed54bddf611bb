// Package httputil centralizes JSON response and domain-error translation so
// every handler returns the same envelope shape.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "enrolld/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies. Registration forms are small; anything
// bigger is abuse.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request types that parse and validate
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the request body into T and runs its validation.
// On failure it writes the error response and returns ok=false; handlers
// just return.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	req := PT(new(T))

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		if logger != nil {
			logger.WarnContext(ctx, "malformed request body", "request_id", requestID, "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return nil, false
	}

	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return req, true
}

// WriteJSON encodes v with the given status. Encoding failures after the
// header is written can only be logged by the caller's middleware.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON error envelope. Remaining is present only for
// invalid-code responses so the UI can show attempts left.
type ErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Remaining        *int   `json:"remaining_attempts,omitempty"`
}

// WriteError maps a domain error to an HTTP response. Internal errors omit
// the description: infrastructure detail is for logs, not clients. No path
// through here ever echoes a token or one-time code.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := ErrorBody{Error: string(code)}

	var de *dErrors.Error
	if code != dErrors.CodeInternal {
		if errors.As(err, &de) {
			body.ErrorDescription = de.Message
			if de.Remaining >= 0 {
				remaining := de.Remaining
				body.Remaining = &remaining
			}
		}
	}

	WriteJSON(w, StatusFor(code), body)
}

// StatusFor maps domain error codes to HTTP statuses.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeExpired, dErrors.CodeCodeExpired:
		return http.StatusGone
	case dErrors.CodeTooManyAttempts:
		return http.StatusTooManyRequests
	case dErrors.CodeInvalidCode:
		return http.StatusUnprocessableEntity
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeInvariantViolation, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
