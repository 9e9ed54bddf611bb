// Package http assembles the service's HTTP surface: the unauthenticated
// public mount the applicants use, the staff mount behind JWT auth, and
// the operational endpoints.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accesshandler "enrolld/internal/access/handler"
	orghandler "enrolld/internal/organization/handler"
	"enrolld/internal/ratelimit"
	reghandler "enrolld/internal/registration/handler"
	"enrolld/internal/reminder"
	staffhandler "enrolld/internal/staff/handler"
	"enrolld/pkg/platform/httputil"
	"enrolld/pkg/platform/middleware/metadata"
	"enrolld/pkg/platform/middleware/request"
	"enrolld/pkg/platform/middleware/requesttime"
)

// Config carries the handlers and cross-cutting middleware the router mounts.
type Config struct {
	Registration *reghandler.Handler
	Access       *accesshandler.Handler
	Organization *orghandler.Handler
	Staff        *staffhandler.Handler
	Reminder     *reminder.Handler

	// Auth guards the staff mount.
	Auth func(http.Handler) http.Handler
	// RateLimit throttles the public mount.
	RateLimit *ratelimit.Middleware

	Logger *slog.Logger
}

// New builds the full route tree.
func New(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.Middleware)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	limit := cfg.RateLimit.Limit

	// Public surface: everything here is reachable without credentials and
	// keyed on access tokens, so each class carries its own budget.
	r.Route("/public", func(r chi.Router) {
		r.With(limit(ratelimit.ClassStart)).
			Post("/organizations/{orgID}/registrations", cfg.Registration.HandleStart)

		r.With(limit(ratelimit.ClassCode)).
			Post("/registrations/{token}/code", cfg.Access.HandleRequestCode)
		r.With(limit(ratelimit.ClassCode)).
			Post("/registrations/{token}/resend", cfg.Access.HandleResend)
		r.With(limit(ratelimit.ClassVerify)).
			Post("/registrations/{token}/verify", cfg.Access.HandleVerify)

		r.With(limit(ratelimit.ClassRead)).
			Get("/registrations/{token}", cfg.Access.HandleGet)
		r.With(limit(ratelimit.ClassRead)).
			Patch("/registrations/{token}", cfg.Access.HandleUpdate)
	})

	r.Route("/staff", func(r chi.Router) {
		// Login is the only unauthenticated staff route, throttled like
		// verification: it is the other credential-guessing target.
		r.With(limit(ratelimit.ClassVerify)).Post("/login", cfg.Staff.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth)
			cfg.Registration.Register(r)
			cfg.Organization.Register(r)
			cfg.Staff.Register(r)
			cfg.Reminder.Register(r)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
