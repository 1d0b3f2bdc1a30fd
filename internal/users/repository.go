package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palisade-io/palisade/internal/authz"
	"github.com/palisade-io/palisade/internal/platform/db"
)

// Sentinel errors for the users module.
var (
	// ErrNotFound indicates the requested account does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrUsernameTaken indicates a unique violation on the username.
	ErrUsernameTaken = errors.New("users: username already taken")
	// ErrPermissionsMissing indicates an account row without its permissions
	// row. A data fault: every account must carry a grant record.
	ErrPermissionsMissing = errors.New("users: permissions row missing for account")
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for accounts and their
// permission grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `uuid, username, email, password_hash, first_name, last_name, created_at, updated_at`

// FindByUsername fetches the internal record, permissions included. The
// username must already be normalized.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return r.scanWithPermissions(ctx, row)
}

// FindByUUID fetches the internal record, permissions included.
func (r *Repository) FindByUUID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uuid = $1`, id)
	return r.scanWithPermissions(ctx, row)
}

// List returns all accounts ordered by username. Permission grants are not
// loaded; listing serves the public projection only.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	return out, rows.Err()
}

// Create inserts the account and its permissions row in one transaction.
func (r *Repository) Create(ctx context.Context, user User) (*User, error) {
	created := user
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO users (uuid, username, email, password_hash, first_name, last_name)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at`,
			user.UUID, user.Username, nullText(user.Email), user.PasswordHash,
			nullText(user.FirstName), nullText(user.LastName),
		)
		if err := row.Scan(&created.CreatedAt, &created.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrUsernameTaken
			}
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO user_permissions (user_uuid, root, manage_users, login)
			VALUES ($1, $2, $3, $4)`,
			user.UUID, user.Permissions.Root,
			user.Permissions.Has(authz.ActionManageUsers),
			user.Permissions.Has(authz.ActionLogin),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *Repository) scanWithPermissions(ctx context.Context, row pgx.Row) (*User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	perms, err := r.findPermissions(ctx, user.UUID)
	if err != nil {
		return nil, err
	}
	user.Permissions = perms
	return user, nil
}

func (r *Repository) findPermissions(ctx context.Context, id uuid.UUID) (authz.PermissionSet, error) {
	var root, manageUsers, login bool
	err := r.pool.QueryRow(ctx,
		`SELECT root, manage_users, login FROM user_permissions WHERE user_uuid = $1`, id,
	).Scan(&root, &manageUsers, &login)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.PermissionSet{}, fmt.Errorf("%w: %s", ErrPermissionsMissing, id)
		}
		return authz.PermissionSet{}, err
	}

	set := authz.PermissionSet{Root: root, Actions: make(map[authz.Action]struct{})}
	if manageUsers {
		set.Actions[authz.ActionManageUsers] = struct{}{}
	}
	if login {
		set.Actions[authz.ActionLogin] = struct{}{}
	}
	return set, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user               User
		email, first, last pgtype.Text
		createdAt, updated pgtype.Timestamptz
	)
	if err := row.Scan(&user.UUID, &user.Username, &email, &user.PasswordHash, &first, &last, &createdAt, &updated); err != nil {
		return nil, err
	}
	user.Email = email.String
	user.FirstName = first.String
	user.LastName = last.String
	user.CreatedAt = safeTime(createdAt.Time)
	user.UpdatedAt = safeTime(updated.Time)
	return &user, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func safeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t
}
