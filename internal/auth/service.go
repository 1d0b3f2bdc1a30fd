package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/palisade-io/palisade/internal/authz"
	"github.com/palisade-io/palisade/internal/shared"
	"github.com/palisade-io/palisade/internal/users"
)

// UserProvider is the storage collaborator consumed by the authentication
// pipeline. Satisfied by users.Repository.
type UserProvider interface {
	FindByUsername(ctx context.Context, username string) (*users.User, error)
}

// Service wraps credential verification, token issuance, and principal
// resolution.
type Service struct {
	provider UserProvider
	hasher   *Hasher
	tokens   *TokenService
	audit    *shared.AuditLogger
	logger   *slog.Logger
	lookups  singleflight.Group
}

// NewService constructs a Service. audit may be nil in tests.
func NewService(provider UserProvider, hasher *Hasher, tokens *TokenService, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, hasher: hasher, tokens: tokens, audit: audit, logger: logger}
}

// Tokens exposes the token service for the login handler's cookie wiring.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Login verifies username/password credentials and issues a session token.
// A missing account, a wrong password, and a malformed stored hash all
// return ErrInvalidCredentials; the malformed-hash case is additionally
// logged as a data fault so it does not hide behind routine login noise.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	normalized := users.NormalizeUsername(username)

	user, err := s.findByUsername(ctx, normalized)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.recordAudit(ctx, "", "login.failure", normalized)
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("auth: fetch user during login: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash is malformed",
			slog.String("username", normalized), slog.Any("error", err))
		s.recordAudit(ctx, user.UUID.String(), "login.failure", normalized)
		return "", ErrInvalidCredentials
	}
	if !ok {
		s.recordAudit(ctx, user.UUID.String(), "login.failure", normalized)
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return "", err
	}

	s.recordAudit(ctx, user.UUID.String(), "login.success", normalized)
	return token, nil
}

// Authenticate validates a serialized token and resolves it to a principal.
// Principal data beyond the username is re-read from storage on every call;
// nothing is cached across requests.
func (s *Service) Authenticate(ctx context.Context, token string) (*authz.Principal, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	user, err := s.findByUsername(ctx, users.NormalizeUsername(claims.Username))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPrincipal, claims.Username)
		}
		return nil, fmt.Errorf("auth: resolve principal: %w", err)
	}

	return user.Principal(), nil
}

// findByUsername collapses concurrent duplicate lookups for the same
// username into one storage call. Not a cache: results are never retained
// past the in-flight call.
//
// The shared call runs on a detached context. It serves every waiter on
// the key, so cancelling the request that happened to start it must not
// fail the others; each waiter still honors its own ctx below.
func (s *Service) findByUsername(ctx context.Context, username string) (*users.User, error) {
	lookupCtx := context.WithoutCancel(ctx)
	resultChan := s.lookups.DoChan(username, func() (any, error) {
		return s.provider.FindByUsername(lookupCtx, username)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*users.User), nil
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, username string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "session",
		EntityID: username,
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
