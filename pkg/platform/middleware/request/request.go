// Package request assigns each inbound request a correlation ID, honoring an
// upstream X-Request-ID when a proxy already set one.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"enrolld/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// Middleware ensures a request ID exists in context and echoes it back on
// the response so clients can quote it in support requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		w.Header().Set(headerRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
