package domain

import (
	"github.com/google/uuid"
)

// User is the account record owned by the identity service.
// This service only reads it.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// DisplayName returns the user's name, or a neutral fallback.
func (u *User) DisplayName() string {
	if u == nil || u.Name == "" {
		return "A team member"
	}
	return u.Name
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID uuid.UUID
	Email  string
	// Role is the global role claim carried in the access token.
	// Organization roles come from memberships.
	Role string
}

// IsZero reports whether no caller is attached.
func (i Identity) IsZero() bool {
	return i.UserID == uuid.Nil
}
