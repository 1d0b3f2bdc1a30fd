package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/authz"
	"github.com/palisade-io/palisade/internal/platform/httpx"
	"github.com/palisade-io/palisade/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *validator.Validate
	idempotency *shared.IdempotencyStore
}

// NewHandler builds a Handler instance. idempotency may be nil, in which
// case Idempotency-Key headers are ignored.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		validator:   validator.New(),
		idempotency: idempotency,
	}
}

// MountRoutes registers user routes. The authentication and authorization
// middlewares are installed by the router; requirements for these routes
// live in the route policy, not here.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/users", h.create)
	r.Get("/users", h.list)
	r.Get("/users/{uuid}", h.get)
	r.Get("/me", h.me)
}

type permissionsRequest struct {
	Root        bool `json:"root"`
	ManageUsers bool `json:"manage_users"`
	Login       bool `json:"login"`
}

type createUserRequest struct {
	Username    string             `json:"username" validate:"required,min=4,max=16,alphanum"`
	Email       string             `json:"email" validate:"omitempty,email"`
	Password    string             `json:"password" validate:"required,min=8"`
	FirstName   string             `json:"first_name" validate:"omitempty,min=1,max=64"`
	LastName    string             `json:"last_name" validate:"omitempty,min=1,max=64"`
	Permissions permissionsRequest `json:"permissions"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user payload")
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "users"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate", "request already processed")
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}

	actions := make([]authz.Action, 0, 2)
	if req.Permissions.ManageUsers {
		actions = append(actions, authz.ActionManageUsers)
	}
	if req.Permissions.Login {
		actions = append(actions, authz.ActionLogin)
	}
	perms := authz.NewPermissionSet(actions...)
	perms.Root = req.Permissions.Root

	created, err := h.service.Create(r.Context(), NewUser{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Permissions: perms,
	}, authz.PrincipalFromContext(r.Context()))
	if err != nil {
		if key != "" && h.idempotency != nil {
			// Roll back the key so the caller can retry after fixing input.
			if delErr := h.idempotency.Delete(r.Context(), key); delErr != nil {
				h.logger.Warn("idempotency rollback", slog.Any("error", delErr))
			}
		}
		if errors.Is(err, ErrUsernameTaken) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "username already taken")
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, created.Public())
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]PublicUser, 0, len(accounts))
	for i := range accounts {
		out = append(out, accounts[i].Public())
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid uuid")
		return
	}

	user, err := h.service.GetByUUID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		// Includes ErrPermissionsMissing: an account without its grants row
		// is a data fault, surfaced as a server error rather than absence.
		h.logger.Error("get user", slog.String("user_uuid", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, user.Public())
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	user, err := h.service.GetByUUID(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("resolve current user", slog.String("user_uuid", principal.ID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, user.Public())
}
