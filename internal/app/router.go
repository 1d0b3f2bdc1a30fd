package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/palisade-io/palisade/internal/auth"
	"github.com/palisade-io/palisade/internal/authz"
	"github.com/palisade-io/palisade/internal/observability"
	"github.com/palisade-io/palisade/internal/users"
	"github.com/palisade-io/palisade/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Registry        *authz.Registry
	AuthHandler     *auth.Handler
	AuthMiddleware  auth.Middleware
	AuthzMiddleware authz.Middleware
	UsersHandler    *users.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// RoutePolicy declares the permission requirement for every guarded route.
// Built once at startup; routes missing from it fail closed. Paths are chi
// route templates, matched against the pattern the router dispatched.
func RoutePolicy() *authz.Registry {
	manageUsers := authz.NewPermissionSet(authz.ActionManageUsers)

	return authz.NewRegistryBuilder().
		Require(http.MethodPost, "/api/users", manageUsers).
		Require(http.MethodGet, "/api/users", manageUsers).
		Require(http.MethodGet, "/api/users/{uuid}", manageUsers).
		Public(http.MethodGet, "/api/me").
		Build()
}

// NewRouter constructs the chi.Router with Palisade defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"response":"pong"}`))
		})

		params.AuthHandler.MountRoutes(r)

		// Everything below requires an authenticated principal and a
		// registered route requirement.
		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.Authenticate)
			r.Use(params.AuthzMiddleware.Enforce)
			params.UsersHandler.MountRoutes(r)
		})
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
