package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/model"
)

const userColumns = `u.id, u.email, u.password_hash, p.full_name, COALESCE(p.username, ''), p.role, u.created_at, p.updated_at`

// CreateIdentity creates a login identity together with its default profile.
// The profile starts with the mechanic role and an empty name.
func CreateIdentity(ctx context.Context, db *sql.DB, email, passwordHash string) (*model.User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating user id: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		id, email, passwordHash,
	); err != nil {
		return nil, fmt.Errorf("creating identity: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profiles (id, role) VALUES (?, ?)`,
		id, model.RoleMechanic,
	); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing identity: %w", err)
	}

	return GetUser(ctx, db, id)
}

// UpdateProfile sets a profile's display name, username and role.
// An empty username is stored as NULL.
func UpdateProfile(ctx context.Context, db *sql.DB, id uuid.UUID, fullName, username string, role model.Role) error {
	var uname any
	if username != "" {
		uname = username
	}

	result, err := db.ExecContext(ctx,
		`UPDATE profiles SET full_name = ?, username = ?, role = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		fullName, uname, role, id,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("updating profile: no profile for %s", id)
	}
	return nil
}

// DeleteIdentity removes an identity and, by cascade, its profile.
func DeleteIdentity(ctx context.Context, db *sql.DB, id uuid.UUID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	return nil
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id uuid.UUID) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+`
		 FROM users u JOIN profiles p ON p.id = u.id
		 WHERE u.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByLogin returns a user by email or username.
func GetUserByLogin(ctx context.Context, db *sql.DB, login string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+`
		 FROM users u JOIN profiles p ON p.id = u.id
		 WHERE u.email = ? OR p.username = ?
		 LIMIT 1`, login, login,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by login: %w", err)
	}
	return u, nil
}

// ListUsers returns all users, optionally filtered by role.
func ListUsers(ctx context.Context, db *sql.DB, role model.Role) ([]model.User, error) {
	query := `SELECT ` + userColumns + `
	          FROM users u JOIN profiles p ON p.id = u.id`
	var args []any
	if role != "" {
		query += ` WHERE p.role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY p.full_name, u.email`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of identities.
func CountUsers(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// SetRole changes a user's role. Only the admin path calls this.
func SetRole(ctx context.Context, db *sql.DB, id uuid.UUID, role model.Role) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE profiles SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		role, id,
	)
	if err != nil {
		return false, fmt.Errorf("setting role: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// SetFullName changes a user's display name.
func SetFullName(ctx context.Context, db *sql.DB, id uuid.UUID, fullName string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE profiles SET full_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		fullName, id,
	)
	if err != nil {
		return fmt.Errorf("setting full name: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id uuid.UUID, passwordHash string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return false, fmt.Errorf("updating user password: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}
