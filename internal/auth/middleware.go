package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/palisade-io/palisade/internal/authz"
	"github.com/palisade-io/palisade/internal/observability"
	"github.com/palisade-io/palisade/internal/platform/httpx"
)

// DefaultCookieName is the session token cookie consulted before the
// Authorization header.
const DefaultCookieName = "palisade_token"

// Middleware resolves the request credential to a principal and attaches it
// to the request context for the authorization layer.
type Middleware struct {
	Service    *Service
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	CookieName string
}

// Authenticate extracts a token (cookie first, bearer header second),
// validates it, resolves the subject against storage, and attaches the
// resulting principal. Response mapping:
//
//	no credential        -> 403, distinct from a rejected one
//	malformed credential -> 401
//	invalid token        -> 401
//	vanished account     -> 500, logged loudly; a valid token pointing at a
//	                        missing account is a data problem, not client error
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := m.extractToken(r)
		if err != nil {
			if errors.Is(err, ErrNoCredential) {
				m.decision("no_credential")
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			m.decision("malformed")
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}

		principal, err := m.Service.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidToken):
				m.decision("invalid_token")
				httpx.RespondError(w, httpx.ErrUnauthorized)
			case errors.Is(err, ErrUnknownPrincipal):
				m.log().Error("valid token for vanished account",
					slog.String("path", r.URL.Path), slog.Any("error", err))
				m.decision("unknown_principal")
				httpx.RespondError(w, err)
			default:
				m.log().Error("principal resolution failed",
					slog.String("path", r.URL.Path), slog.Any("error", err))
				m.decision("error")
				httpx.RespondError(w, err)
			}
			return
		}

		m.decision("authenticated")
		ctx := authz.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) extractToken(r *http.Request) (string, error) {
	name := m.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoCredential
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMalformedCredential
	}
	return strings.TrimSpace(token), nil
}

func (m Middleware) log() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m Middleware) decision(outcome string) {
	if m.Metrics != nil {
		m.Metrics.AuthDecision("authenticate", outcome)
	}
}
