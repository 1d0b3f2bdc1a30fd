package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/palisade-io/palisade/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the login flow.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	validator  *validator.Validate
	cookieName string
	secure     bool
}

// NewHandler constructs a Handler instance. secure controls the cookie
// Secure flag and should be on in production.
func NewHandler(logger *slog.Logger, service *Service, cookieName string, secure bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Handler{
		logger:     logger,
		service:    service,
		validator:  validator.New(),
		cookieName: cookieName,
		secure:     secure,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=4,max=16,alphanum"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid credentials payload")
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		h.logger.Error("login failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(h.service.Tokens().TTL()),
	})
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token})
}
