package users

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/authz"
	"github.com/palisade-io/palisade/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, user User) (*User, error)
}

// PasswordHasher derives a storable hash from a plaintext password.
// Satisfied by auth.Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// NewUser carries validated input for account creation. The plaintext
// password never reaches the repository; the service hashes it first.
type NewUser struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Permissions authz.PermissionSet
}

// Service handles account management logic.
type Service struct {
	repo   RepositoryPort
	hasher PasswordHasher
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance. audit may be nil in tests.
func NewService(repo RepositoryPort, hasher PasswordHasher, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, hasher: hasher, audit: audit, logger: logger}
}

// Create hashes the password, assigns a fresh UUID, and persists the account
// with its permission grants.
func (s *Service) Create(ctx context.Context, input NewUser, actor *authz.Principal) (*User, error) {
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		UUID:         uuid.New(),
		Username:     NormalizeUsername(input.Username),
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Permissions:  input.Permissions,
	}
	if user.Permissions.Actions == nil {
		user.Permissions.Actions = make(map[authz.Action]struct{})
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "user.created", created.UUID.String(), nil)
	s.logger.Info("user created", slog.String("user_uuid", created.UUID.String()))
	return created, nil
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// GetByUUID returns one account, permissions included.
func (s *Service) GetByUUID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.FindByUUID(ctx, id)
}

// GetByUsername returns one account by normalized username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.FindByUsername(ctx, NormalizeUsername(username))
}

func (s *Service) recordAudit(ctx context.Context, actor *authz.Principal, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID := ""
	if actor != nil {
		actorID = actor.ID.String()
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
