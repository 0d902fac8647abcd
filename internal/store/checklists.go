package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/model"
)

const checklistColumns = `c.id, c.mechanic_id, c.customer_name, c.plate, c.vehicle_name, c.priority, c.status,
	c.general_observations, c.created_at, c.updated_at, c.completed_at, COALESCE(p.full_name, '')`

// ChecklistFilter narrows ListChecklists. Zero fields match everything.
type ChecklistFilter struct {
	MechanicID uuid.UUID
	Status     model.Status
	Search     string
}

// ChecklistUpdate holds the fields to change. Nil fields are left as they are.
type ChecklistUpdate struct {
	MechanicID          *uuid.UUID
	CustomerName        *string
	Plate               *string
	VehicleName         *string
	Priority            *model.Priority
	Status              *model.Status
	GeneralObservations *string
	Now                 time.Time
}

// CreateChecklist inserts a checklist and its items in one transaction.
func CreateChecklist(ctx context.Context, db *sql.DB, c *model.Checklist, items []model.ChecklistItem) (*model.Checklist, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checklists (id, mechanic_id, customer_name, plate, vehicle_name, priority, status, general_observations, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MechanicID, c.CustomerName, c.Plate, c.VehicleName, c.Priority, c.Status, c.GeneralObservations, c.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating checklist: %w", err)
	}

	for i, it := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO checklist_items (id, checklist_id, item_name, category, checked, observation, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			it.ID, c.ID, it.Name, it.Category, it.Checked, it.Observation, i,
		); err != nil {
			return nil, fmt.Errorf("creating checklist item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing checklist: %w", err)
	}

	return GetChecklist(ctx, db, c.ID)
}

// GetChecklist returns a checklist with its items, photo IDs and mechanic name.
// It does not apply a scope: callers authorize the returned row.
func GetChecklist(ctx context.Context, db *sql.DB, id uuid.UUID) (*model.Checklist, error) {
	c, err := scanChecklist(db.QueryRowContext(ctx,
		`SELECT `+checklistColumns+`
		 FROM checklists c LEFT JOIN profiles p ON p.id = c.mechanic_id
		 WHERE c.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting checklist: %w", err)
	}

	if c.Items, err = listChecklistItems(ctx, db, id); err != nil {
		return nil, err
	}
	if c.PhotoIDs, err = listChecklistPhotoIDs(ctx, db, id); err != nil {
		return nil, err
	}
	return c, nil
}

// ListChecklists returns the checklists visible in scope, newest first.
// Items are not loaded; use GetChecklist for a single checklist.
func ListChecklists(ctx context.Context, db *sql.DB, scope model.Scope, f ChecklistFilter) ([]model.Checklist, error) {
	query := `SELECT ` + checklistColumns + `
	          FROM checklists c LEFT JOIN profiles p ON p.id = c.mechanic_id
	          WHERE (? OR c.mechanic_id = ?)`
	args := []any{scope.All, scope.UserID}

	if f.MechanicID != uuid.Nil {
		query += ` AND c.mechanic_id = ?`
		args = append(args, f.MechanicID)
	}
	if f.Status != "" {
		query += ` AND c.status = ?`
		args = append(args, f.Status)
	}
	if f.Search != "" {
		query += ` AND (c.customer_name LIKE ? OR c.vehicle_name LIKE ? OR c.plate LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like, like)
	}
	query += ` ORDER BY c.created_at DESC, c.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing checklists: %w", err)
	}
	defer rows.Close()

	var checklists []model.Checklist
	for rows.Next() {
		c, err := scanChecklist(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning checklist: %w", err)
		}
		checklists = append(checklists, *c)
	}
	return checklists, rows.Err()
}

// UpdateChecklist applies u to a checklist within scope and reports whether a
// row was changed. completed_at is derived in SQL from the new status so that
// concurrent writers cannot leave it inconsistent. Outside an admin scope the
// row must belong to the caller and must neither be nor become completed.
func UpdateChecklist(ctx context.Context, db *sql.DB, scope model.Scope, id uuid.UUID, u ChecklistUpdate) (bool, error) {
	args := append(completedAtArgs(model.ChecklistLifecycle, u.Status, u.Now),
		sql.Named("mechanic", u.MechanicID),
		sql.Named("customer", u.CustomerName),
		sql.Named("plate", u.Plate),
		sql.Named("vehicle", u.VehicleName),
		sql.Named("priority", u.Priority),
		sql.Named("observations", u.GeneralObservations),
		sql.Named("id", id),
		sql.Named("all", scope.All),
		sql.Named("user", scope.UserID),
	)
	result, err := db.ExecContext(ctx,
		`UPDATE checklists SET
		     mechanic_id = COALESCE(:mechanic, mechanic_id),
		     customer_name = COALESCE(:customer, customer_name),
		     plate = COALESCE(:plate, plate),
		     vehicle_name = COALESCE(:vehicle, vehicle_name),
		     priority = COALESCE(:priority, priority),
		     general_observations = COALESCE(:observations, general_observations),
		     completed_at = `+completedAtCase+`,
		     status = COALESCE(:status, status),
		     updated_at = :now
		 WHERE id = :id
		   AND (:all OR (mechanic_id = :user AND status != :terminal AND COALESCE(:status, status) != :terminal))`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("updating checklist: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// SetChecklistItem updates one item's checked flag and, when observation is
// non-nil, its observation. Outside an admin scope the checklist must belong to
// the caller and must not be completed.
func SetChecklistItem(ctx context.Context, db *sql.DB, scope model.Scope, checklistID, itemID uuid.UUID, checked bool, observation *string, now time.Time) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE checklist_items SET checked = :checked, observation = COALESCE(:observation, observation)
		 WHERE id = :item AND checklist_id = :checklist
		   AND EXISTS (SELECT 1 FROM checklists c WHERE c.id = :checklist
		               AND (:all OR (c.mechanic_id = :user AND c.status != :terminal)))`,
		sql.Named("terminal", model.ChecklistLifecycle.Terminal()),
		sql.Named("checked", checked),
		sql.Named("observation", observation),
		sql.Named("item", itemID),
		sql.Named("checklist", checklistID),
		sql.Named("all", scope.All),
		sql.Named("user", scope.UserID),
	)
	if err != nil {
		return false, fmt.Errorf("updating checklist item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE checklists SET updated_at = ? WHERE id = ?`, now, checklistID,
	); err != nil {
		return false, fmt.Errorf("touching checklist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing checklist item: %w", err)
	}
	return true, nil
}

// DeleteChecklist removes a checklist with its items and photos and
// deactivates its public links. Only an admin scope may delete.
func DeleteChecklist(ctx context.Context, db *sql.DB, scope model.Scope, id uuid.UUID, now time.Time) (bool, error) {
	if !scope.All {
		return false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checklist_items WHERE checklist_id = ?`, id); err != nil {
		return false, fmt.Errorf("deleting checklist items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checklist_photos WHERE checklist_id = ?`, id); err != nil {
		return false, fmt.Errorf("deleting checklist photos: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM checklists WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting checklist: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, nil
	}

	if _, err := deactivateLinks(ctx, tx, model.Ref{Type: model.TypeChecklist, ID: id}, now); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing checklist delete: %w", err)
	}
	return true, nil
}

// AddChecklistPhoto stores an already processed image for a checklist within scope.
func AddChecklistPhoto(ctx context.Context, db *sql.DB, scope model.Scope, checklistID uuid.UUID, data []byte, mime string) (uuid.UUID, bool, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("generating photo id: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO checklist_photos (id, checklist_id, data, mime)
		 SELECT :id, c.id, :data, :mime FROM checklists c
		 WHERE c.id = :checklist AND (:all OR (c.mechanic_id = :user AND c.status != :terminal))`,
		sql.Named("terminal", model.ChecklistLifecycle.Terminal()),
		sql.Named("id", id),
		sql.Named("data", data),
		sql.Named("mime", mime),
		sql.Named("checklist", checklistID),
		sql.Named("all", scope.All),
		sql.Named("user", scope.UserID),
	)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("adding checklist photo: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// GetChecklistPhoto returns a photo's data and MIME type if it belongs to the checklist.
func GetChecklistPhoto(ctx context.Context, db *sql.DB, checklistID, photoID uuid.UUID) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM checklist_photos WHERE id = ? AND checklist_id = ?`,
		photoID, checklistID,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting checklist photo: %w", err)
	}
	return data, mime, nil
}

func listChecklistItems(ctx context.Context, db *sql.DB, checklistID uuid.UUID) ([]model.ChecklistItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, checklist_id, item_name, category, checked, observation, position
		 FROM checklist_items WHERE checklist_id = ?
		 ORDER BY position, item_name`, checklistID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing checklist items: %w", err)
	}
	defer rows.Close()

	var items []model.ChecklistItem
	for rows.Next() {
		var it model.ChecklistItem
		if err := rows.Scan(&it.ID, &it.ChecklistID, &it.Name, &it.Category, &it.Checked, &it.Observation, &it.Position); err != nil {
			return nil, fmt.Errorf("scanning checklist item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func listChecklistPhotoIDs(ctx context.Context, db *sql.DB, checklistID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM checklist_photos WHERE checklist_id = ? ORDER BY id`, checklistID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing checklist photos: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning photo id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanChecklist(row rowScanner) (*model.Checklist, error) {
	c := &model.Checklist{}
	err := row.Scan(&c.ID, &c.MechanicID, &c.CustomerName, &c.Plate, &c.VehicleName, &c.Priority, &c.Status,
		&c.GeneralObservations, &c.CreatedAt, &c.UpdatedAt, &c.CompletedAt, &c.MechanicName)
	if err != nil {
		return nil, err
	}
	return c, nil
}
