package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"enrolld/pkg/platform/httputil"
	"enrolld/pkg/platform/privacy"
	"enrolld/pkg/requestcontext"
)

// Checker is the limiter surface the middleware needs.
type Checker interface {
	CheckIP(ctx context.Context, ip string, class EndpointClass) (*Result, error)
}

// Middleware guards routes with per-IP budgets.
type Middleware struct {
	checker  Checker
	logger   *slog.Logger
	disabled bool
}

type MiddlewareOption func(m *Middleware)

// WithDisabled turns the middleware into a pass-through (tests/demo).
func WithDisabled(disabled bool) MiddlewareOption {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// NewMiddleware constructs the rate limit middleware.
func NewMiddleware(checker Checker, logger *slog.Logger, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{checker: checker, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit returns the middleware for one endpoint class. A limiter failure
// fails open: throttling is protection, not a dependency.
func (m *Middleware) Limit(class EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.checker.CheckIP(ctx, ip, class)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"error", err, "ip_prefix", privacy.AnonymizeIP(ip))
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, result)
			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":       "rate_limit_exceeded",
					"message":     "Too many requests. Please try again later.",
					"retry_after": result.RetryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addHeaders(w http.ResponseWriter, result *Result) {
	if result == nil || result.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
