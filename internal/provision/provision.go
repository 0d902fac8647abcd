// Package provision creates principals on behalf of an admin.
//
// Creating a principal takes two writes: the identity (email and password,
// with a default mechanic profile) and then the profile details. If the
// second write fails the identity is deleted again, so a failed provisioning
// never leaves a half-configured account that could log in.
package provision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/oficina/internal/apperr"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/policy"
	"github.com/erazemk/oficina/internal/sanitize"
	"github.com/erazemk/oficina/internal/store"
)

// rollbackTimeout bounds the compensating delete. It runs even when the
// caller's context is already done.
const rollbackTimeout = 5 * time.Second

// Directory is the identity store.
type Directory interface {
	CreateIdentity(ctx context.Context, email, passwordHash string) (uuid.UUID, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName, username string, role model.Role) error
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
	SetRole(ctx context.Context, id uuid.UUID, role model.Role) (bool, error)
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// SQLDirectory is the Directory backed by the application database.
type SQLDirectory struct {
	DB *sql.DB
}

func (d SQLDirectory) CreateIdentity(ctx context.Context, email, passwordHash string) (uuid.UUID, error) {
	u, err := store.CreateIdentity(ctx, d.DB, email, passwordHash)
	if err != nil {
		return uuid.Nil, err
	}
	return u.ID, nil
}

func (d SQLDirectory) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, username string, role model.Role) error {
	return store.UpdateProfile(ctx, d.DB, id, fullName, username, role)
}

func (d SQLDirectory) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	return store.DeleteIdentity(ctx, d.DB, id)
}

func (d SQLDirectory) SetRole(ctx context.Context, id uuid.UUID, role model.Role) (bool, error) {
	return store.SetRole(ctx, d.DB, id, role)
}

func (d SQLDirectory) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) (bool, error) {
	return store.UpdateUserPassword(ctx, d.DB, id, passwordHash)
}

func (d SQLDirectory) Count(ctx context.Context) (int, error) {
	return store.CountUsers(ctx, d.DB)
}

// NewPrincipal is the input of CreatePrincipal.
type NewPrincipal struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	FullName string     `json:"full_name"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

// Provisioner creates principals and changes their roles.
type Provisioner struct {
	Dir     Directory
	Timeout time.Duration
	// Cost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	Cost int
}

// New returns a Provisioner over the application database.
func New(db *sql.DB, timeout time.Duration) *Provisioner {
	return &Provisioner{Dir: SQLDirectory{DB: db}, Timeout: timeout}
}

// CreatePrincipal creates a principal. Only admins may call it.
func (p *Provisioner) CreatePrincipal(ctx context.Context, caller *model.Principal, np NewPrincipal) (uuid.UUID, error) {
	if d := policy.CanManageUsers(caller); !d.Allowed {
		slog.Warn("provisioning denied", "user", callerID(caller), "reason", d.Reason)
		return uuid.Nil, apperr.Denied(d.Reason)
	}
	if err := np.normalize(); err != nil {
		return uuid.Nil, err
	}

	id, err := p.create(ctx, np)
	if err != nil {
		return uuid.Nil, err
	}

	slog.Info("user created", "user", caller.ID, "new_user", id, "email", np.Email, "role", np.Role)
	return id, nil
}

// Bootstrap creates the first admin of an empty directory. It reports false
// and does nothing once any principal exists.
func (p *Provisioner) Bootstrap(ctx context.Context, np NewPrincipal) (uuid.UUID, bool, error) {
	np.Role = model.RoleAdmin
	if err := np.normalize(); err != nil {
		return uuid.Nil, false, err
	}

	n, err := p.Dir.Count(ctx)
	if err != nil {
		return uuid.Nil, false, apperr.Store("counting principals", err)
	}
	if n > 0 {
		return uuid.Nil, false, nil
	}

	id, err := p.create(ctx, np)
	if err != nil {
		return uuid.Nil, false, err
	}

	slog.Info("admin bootstrapped", "new_user", id, "email", np.Email)
	return id, true, nil
}

// create runs the two provisioning steps, deleting the identity again when
// the profile step fails.
func (p *Provisioner) create(ctx context.Context, np NewPrincipal) (uuid.UUID, error) {
	hash, err := hashPassword(np.Password, p.cost())
	if err != nil {
		return uuid.Nil, err
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	id, err := p.Dir.CreateIdentity(ctx, np.Email, hash)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return uuid.Nil, apperr.Invalid("email", "already in use")
		}
		slog.Error("failed to create identity", "error", err)
		return uuid.Nil, apperr.Store("creating identity", err)
	}

	if err := p.Dir.UpdateProfile(ctx, id, np.FullName, np.Username, np.Role); err != nil {
		p.rollback(ctx, id, err)
		if store.IsUniqueViolation(err) {
			return uuid.Nil, apperr.Invalid("username", "already in use")
		}
		return uuid.Nil, apperr.Store("updating profile", err)
	}

	return id, nil
}

// rollback deletes an identity whose profile could not be written.
func (p *Provisioner) rollback(ctx context.Context, id uuid.UUID, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := p.Dir.DeleteIdentity(ctx, id); err != nil {
		slog.Error("failed to roll back identity", "id", id, "cause", cause, "error", err)
		return
	}
	slog.Warn("identity rolled back", "id", id, "cause", cause)
}

// SetRole changes the role of another principal. Admins cannot change their
// own role, so the last admin cannot lock everyone out by accident.
func (p *Provisioner) SetRole(ctx context.Context, caller *model.Principal, id uuid.UUID, role model.Role) error {
	if d := policy.CanManageUsers(caller); !d.Allowed {
		slog.Warn("role change denied", "user", callerID(caller), "target_user", id, "reason", d.Reason)
		return apperr.Denied(d.Reason)
	}
	if !role.Valid() {
		return apperr.Invalid("role", "unknown role %q", role)
	}
	if id == caller.ID {
		return apperr.Invalid("role", "cannot change your own role")
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	ok, err := p.Dir.SetRole(ctx, id, role)
	if err != nil {
		slog.Error("failed to set role", "error", err)
		return apperr.Store("setting role", err)
	}
	if !ok {
		return apperr.ErrNotFound
	}

	slog.Info("user role updated", "user", caller.ID, "target_user", id, "new_role", role)
	return nil
}

// ResetPassword sets another principal's password.
func (p *Provisioner) ResetPassword(ctx context.Context, caller *model.Principal, id uuid.UUID, password string) error {
	if d := policy.CanManageUsers(caller); !d.Allowed {
		slog.Warn("password reset denied", "user", callerID(caller), "target_user", id, "reason", d.Reason)
		return apperr.Denied(d.Reason)
	}
	if err := model.ValidatePassword(password); err != nil {
		return apperr.Invalid("password", "%v", err)
	}

	hash, err := hashPassword(password, p.cost())
	if err != nil {
		return err
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	ok, err := p.Dir.SetPassword(ctx, id, hash)
	if err != nil {
		slog.Error("failed to reset password", "error", err)
		return apperr.Store("resetting password", err)
	}
	if !ok {
		return apperr.ErrNotFound
	}

	slog.Info("user password reset", "user", caller.ID, "target_user", id)
	return nil
}

func (np *NewPrincipal) normalize() error {
	np.Email = strings.ToLower(strings.TrimSpace(np.Email))
	np.FullName = sanitize.Text(np.FullName)
	np.Username = strings.ToLower(sanitize.Text(np.Username))
	if np.Role == "" {
		np.Role = model.RoleMechanic
	}

	addr, err := mail.ParseAddress(np.Email)
	if err != nil || addr.Address != np.Email {
		return apperr.Invalid("email", "is not a valid address")
	}
	if err := model.ValidatePassword(np.Password); err != nil {
		return apperr.Invalid("password", "%v", err)
	}
	if np.FullName == "" {
		return apperr.Invalid("full_name", "is required")
	}
	if strings.ContainsAny(np.Username, " @") {
		return apperr.Invalid("username", "must not contain spaces or @")
	}
	if !np.Role.Valid() {
		return apperr.Invalid("role", "unknown role %q", np.Role)
	}
	return nil
}

func (p *Provisioner) cost() int {
	if p.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return p.Cost
}

func (p *Provisioner) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.Timeout)
}

func callerID(p *model.Principal) any {
	if p == nil {
		return "anonymous"
	}
	return p.ID
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperr.Invalid("password", "must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
