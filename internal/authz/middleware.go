package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/palisade-io/palisade/internal/observability"
	"github.com/palisade-io/palisade/internal/platform/httpx"
)

// Middleware enforces route requirements against the principal attached by
// the authentication layer.
type Middleware struct {
	Registry *Registry
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Enforce denies the request unless the registry holds a requirement for the
// dispatched route template and the principal satisfies it. Unregistered
// routes fail closed; the caller is never told which action was missing.
//
// Install it on an inline router (chi Group, With, or Route) so it runs
// after route matching. Mounted ahead of matching there is no dispatched
// template to look up and every request is refused as a configuration gap.
func (m Middleware) Enforce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := PrincipalFromContext(r.Context())
		if principal == nil {
			// Authentication never ran; the chain is misconfigured.
			m.log().Error("authorization reached without principal",
				slog.String("method", r.Method), slog.String("path", r.URL.Path))
			m.decision("error")
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}

		route := routePattern(r)
		if route == "" {
			// No dispatched template means the middleware ran before route
			// matching; requirements cannot be looked up against concrete
			// URLs, so refuse rather than guess.
			m.log().Error("no dispatched route template, middleware mounted ahead of route matching",
				slog.String("method", r.Method), slog.String("path", r.URL.Path))
			m.decision("config_gap")
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		switch err := Authorize(m.Registry, principal, r.Method, route); {
		case errors.Is(err, ErrConfigurationGap):
			// Missing registration, not an under-privileged caller. Logged
			// with its own shape so operators can find the gap.
			m.log().Warn("route has no registered requirement",
				slog.String("method", r.Method), slog.String("route", route))
			m.decision("config_gap")
			httpx.RespondError(w, httpx.ErrUnauthorized)
		case errors.Is(err, ErrPermissionDenied):
			m.log().Info("permission denied",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.String("username", principal.Username))
			m.decision("denied")
			httpx.RespondError(w, httpx.ErrUnauthorized)
		default:
			m.decision("allowed")
			next.ServeHTTP(w, r)
		}
	})
}

func (m Middleware) log() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m Middleware) decision(outcome string) {
	if m.Metrics != nil {
		m.Metrics.AuthDecision("authorize", outcome)
	}
}

// routePattern returns the route template the router dispatched, or ""
// when no matching has happened yet. Deliberately no fallback to the
// concrete URL: matching requirements against raw paths would silently
// change which registry entry applies to parameterized routes.
func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		return routeCtx.RoutePattern()
	}
	return ""
}
