package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/palisade-io/palisade/internal/authz"
)

// User is the canonical internal account record, including the stored
// password hash and granted permissions. It must never be serialized to a
// client; handlers emit the Public projection instead.
type User struct {
	UUID         uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Permissions  authz.PermissionSet
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the external-safe shape of an account.
type PublicUser struct {
	UUID      uuid.UUID `json:"uuid"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
}

// Public projects the internal record to its external shape. Total: defined
// for every internal record, and the only path a record takes to a client.
func (u *User) Public() PublicUser {
	return PublicUser{
		UUID:      u.UUID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Principal builds the request identity carried through the middleware
// pipeline for this account.
func (u *User) Principal() *authz.Principal {
	return &authz.Principal{
		ID:          u.UUID,
		Username:    u.Username,
		Permissions: u.Permissions,
	}
}

// NormalizeUsername canonicalizes a username for storage and lookup.
// Usernames are case-insensitive identifiers; NFKC folds compatibility
// variants so visually-identical names cannot coexist.
func NormalizeUsername(username string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(username)))
}
