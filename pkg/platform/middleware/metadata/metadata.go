// Package metadata extracts client network metadata into the request
// context. The rate limiter keys on the resolved client IP.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"enrolld/pkg/requestcontext"
)

// Middleware resolves the client IP (X-Forwarded-For aware) and stores it in
// context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientIP(r.Context(), resolveClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the socket address. Only deploy behind a proxy that strips inbound
// forwarding headers, otherwise clients can spoof their rate-limit identity.
func resolveClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
