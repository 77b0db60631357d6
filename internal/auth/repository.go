package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for user and role-grant persistence.
type Repository interface {
	// CreateUser inserts a new user account and sets its allocated ID.
	// Returns ErrUsernameExists if the username is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by id.
	// Returns ErrUserNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	// Returns ErrUserNotFound if the user does not exist.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GrantRole creates or replaces a user's role for a house.
	GrantRole(ctx context.Context, userID, houseID int64, role Role) error

	// GetRole returns the user's role for a house.
	// Returns ErrNoHouseAccess if there is no grant.
	GetRole(ctx context.Context, userID, houseID int64) (Role, error)

	// ListHouseAccess returns every house the user holds a grant for,
	// joined with the house name, ordered by house id.
	ListHouseAccess(ctx context.Context, userID int64) ([]HouseAccess, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed auth repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateUser inserts a new user account.
func (r *SQLiteRepository) CreateUser(ctx context.Context, user *User) error {
	if !IsValidUsername(user.Username) {
		return fmt.Errorf("creating user: invalid username %q", user.Username)
	}

	now := time.Now().UTC()
	user.CreatedAt = now

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		user.Username, user.PasswordHash, now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their unique ID.
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return r.getUser(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id)
}

// GetUserByUsername retrieves a user by their username.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username)
}

// getUser runs a single-row user query and scans the result.
func (r *SQLiteRepository) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	var createdAt string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &u, nil
}

// GrantRole creates or replaces a user's role for a house.
func (r *SQLiteRepository) GrantRole(ctx context.Context, userID, houseID int64, role Role) error {
	if !IsValidRole(role) {
		return fmt.Errorf("granting role: unknown role %q", role)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO house_user_roles (user_id, house_id, role) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, house_id) DO UPDATE SET role = excluded.role`,
		userID, houseID, string(role),
	)
	if err != nil {
		return fmt.Errorf("granting role: %w", err)
	}
	return nil
}

// GetRole returns the user's role for a house.
func (r *SQLiteRepository) GetRole(ctx context.Context, userID, houseID int64) (Role, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		"SELECT role FROM house_user_roles WHERE user_id = ? AND house_id = ?",
		userID, houseID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoHouseAccess
		}
		return "", fmt.Errorf("querying role: %w", err)
	}
	return Role(role), nil
}

// ListHouseAccess returns every house the user holds a grant for.
func (r *SQLiteRepository) ListHouseAccess(ctx context.Context, userID int64) ([]HouseAccess, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT h.id, h.name, r.role
		 FROM house_user_roles r
		 JOIN houses h ON h.id = r.house_id
		 WHERE r.user_id = ?
		 ORDER BY h.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing house access: %w", err)
	}
	defer rows.Close()

	access := []HouseAccess{}
	for rows.Next() {
		var a HouseAccess
		var role string
		if err := rows.Scan(&a.HouseID, &a.Name, &role); err != nil {
			return nil, fmt.Errorf("scanning house access: %w", err)
		}
		a.Role = Role(role)
		access = append(access, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating house access: %w", err)
	}
	return access, nil
}

// isUniqueViolation checks if an error is a SQLite unique constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
