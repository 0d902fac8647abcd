package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/oficina/internal/model"
)

const linkColumns = `token, resource_type, resource_id, is_active, created_at, deactivated_at`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetOrCreateLink returns the active link token for ref, inserting candidate
// if there is none. The partial unique index on active links makes the insert
// a no-op when another caller won the race, and the re-select then returns the
// winner's token (INSERT OR IGNORE + re-SELECT, no check-then-insert window).
// The insert only happens while the resource exists, so a concurrent delete
// cannot leave an active link behind; ErrNoResource reports that case.
// created reports whether candidate became the active token.
func GetOrCreateLink(ctx context.Context, db *sql.DB, ref model.Ref, candidate string) (token string, created bool, err error) {
	table, err := resourceTable(ref.Type)
	if err != nil {
		return "", false, err
	}

	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO public_links (token, resource_type, resource_id, is_active)
		 SELECT ?, ?, ?, 1 WHERE EXISTS (SELECT 1 FROM `+table+` WHERE id = ?)`,
		candidate, ref.Type, ref.ID, ref.ID,
	); err != nil {
		return "", false, fmt.Errorf("storing public link: %w", err)
	}

	link, err := GetActiveLink(ctx, db, ref)
	if err != nil {
		return "", false, err
	}
	if link != nil {
		return link.Token, link.Token == candidate, nil
	}

	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = ?)`, ref.ID,
	).Scan(&exists); err != nil {
		return "", false, fmt.Errorf("checking resource: %w", err)
	}
	if !exists {
		return "", false, ErrNoResource
	}
	// Deactivated between the insert and the select.
	return "", false, nil
}

// GetActiveLink returns the active link for ref, or nil if there is none.
func GetActiveLink(ctx context.Context, db *sql.DB, ref model.Ref) (*model.PublicLink, error) {
	l, err := scanLink(db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM public_links
		 WHERE resource_type = ? AND resource_id = ? AND is_active = 1`,
		ref.Type, ref.ID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting active link: %w", err)
	}
	return l, nil
}

// LookupActiveLink returns the active link with the given token, or nil if the
// token is unknown or deactivated.
func LookupActiveLink(ctx context.Context, db *sql.DB, token string) (*model.PublicLink, error) {
	l, err := scanLink(db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM public_links WHERE token = ? AND is_active = 1`,
		token,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up link: %w", err)
	}
	return l, nil
}

// ListLinks returns every link ever issued for ref, newest first. Deactivated
// links are kept as an audit trail.
func ListLinks(ctx context.Context, db *sql.DB, ref model.Ref) ([]model.PublicLink, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM public_links
		 WHERE resource_type = ? AND resource_id = ?
		 ORDER BY created_at DESC, is_active DESC`,
		ref.Type, ref.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer rows.Close()

	var links []model.PublicLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// DeactivateLinks flips every active link of ref to inactive and returns how
// many were changed. Links are never deleted.
func DeactivateLinks(ctx context.Context, db *sql.DB, ref model.Ref, now time.Time) (int64, error) {
	return deactivateLinks(ctx, db, ref, now)
}

func deactivateLinks(ctx context.Context, e execer, ref model.Ref, now time.Time) (int64, error) {
	result, err := e.ExecContext(ctx,
		`UPDATE public_links SET is_active = 0, deactivated_at = ?
		 WHERE resource_type = ? AND resource_id = ? AND is_active = 1`,
		now, ref.Type, ref.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivating links: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func scanLink(row rowScanner) (*model.PublicLink, error) {
	l := &model.PublicLink{}
	if err := row.Scan(&l.Token, &l.Ref.Type, &l.Ref.ID, &l.Active, &l.CreatedAt, &l.DeactivatedAt); err != nil {
		return nil, err
	}
	return l, nil
}
