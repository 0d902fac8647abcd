package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is an identity joined with its profile.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal returns the acting identity for u.
func (u *User) Principal() *Principal {
	return &Principal{ID: u.ID, Role: u.Role, Name: u.FullName}
}

// Role is a principal's role.
type Role string

// Roles.
const (
	RoleAdmin    Role = "admin"
	RoleMechanic Role = "mechanic"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMechanic
}

// Principal is an authenticated actor.
type Principal struct {
	ID   uuid.UUID
	Role Role
	Name string
}

// IsAdmin reports whether p holds the admin role. A nil principal is not an admin.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Scope restricts store queries to the rows a caller may touch.
// It is folded into SQL WHERE clauses so the store enforces ownership
// independently of the in-process policy.
type Scope struct {
	UserID uuid.UUID
	All    bool
}

// ScopeFor returns the row scope for p. Unknown roles and nil principals
// get an empty scope that matches no rows.
func ScopeFor(p *Principal) Scope {
	if p == nil {
		return Scope{}
	}
	switch p.Role {
	case RoleAdmin:
		return Scope{UserID: p.ID, All: true}
	case RoleMechanic:
		return Scope{UserID: p.ID}
	default:
		return Scope{}
	}
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
