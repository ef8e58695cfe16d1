package domain

import (
	"fmt"
	"time"
)

// Role determines what a user is allowed to do. It is assigned at first
// login and never changes afterwards.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole validates a stored role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User represents an authenticated participant of the ledger.
type User struct {
	ID        int64
	Nickname  string
	Role      Role
	CreatedAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
