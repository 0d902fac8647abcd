package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/erazemk/oficina/internal/model"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('jwt_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'jwt_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}

	return secret, nil
}

// Company header keys.
const (
	keyCompanyName    = "company_name"
	keyCompanyAddress = "company_address"
	keyCompanyPhone   = "company_phone"
)

// GetCompany returns the workshop header. Missing keys are empty.
func GetCompany(ctx context.Context, db *sql.DB) (*model.Company, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE key IN (?, ?, ?)`,
		keyCompanyName, keyCompanyAddress, keyCompanyPhone,
	)
	if err != nil {
		return nil, fmt.Errorf("getting company settings: %w", err)
	}
	defer rows.Close()

	c := &model.Company{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		switch key {
		case keyCompanyName:
			c.Name = value
		case keyCompanyAddress:
			c.Address = value
		case keyCompanyPhone:
			c.Phone = value
		}
	}
	return c, rows.Err()
}

// SetCompany stores the workshop header.
func SetCompany(ctx context.Context, db *sql.DB, c model.Company) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		keyCompanyName:    c.Name,
		keyCompanyAddress: c.Address,
		keyCompanyPhone:   c.Phone,
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("storing %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing company settings: %w", err)
	}
	return nil
}
