package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents a user's capability level within a single house.
// Roles are house-scoped: the same user can be admin in one house and
// guest in another.
type Role string

const (
	// RoleGuest can observe house state but not change it.
	RoleGuest Role = "guest"

	// RoleRegular can operate devices but cannot alter house structure.
	RoleRegular Role = "regular"

	// RoleAdmin can operate devices, add/remove rooms and devices, and
	// adjust the alarm threshold. Only admins retain access while the
	// alarm is triggered.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a grant may carry.
var ValidRoles = []Role{RoleGuest, RoleRegular, RoleAdmin}

// IsValidRole returns true if the role is one of the known roles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User represents an authenticated account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"created_at"`
}

// HouseAccess is a user's grant for one house, joined with the house name
// for the login response.
type HouseAccess struct {
	HouseID int64  `json:"id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUsernameExists     = errors.New("auth: username already exists")
	ErrNoHouseAccess      = errors.New("auth: no role grant for house")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrTokenExpired       = errors.New("auth: token has expired")
)
