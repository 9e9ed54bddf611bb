// Package auth guards staff routes with bearer JWT validation.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "enrolld/pkg/domain"
	dErrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/platform/httputil"
	"enrolld/pkg/requestcontext"
)

// TokenValidator validates a staff access token and returns the identity it
// carries. Implemented by internal/staff/service.
type TokenValidator interface {
	ValidateToken(tokenString string) (id.StaffID, id.OrgID, error)
}

// RequireStaff rejects requests without a valid Bearer token and injects the
// staff and organization IDs into the request context.
func RequireStaff(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			staffID, orgID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected staff token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx := requestcontext.WithStaffID(r.Context(), staffID)
			ctx = requestcontext.WithOrgID(ctx, orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
