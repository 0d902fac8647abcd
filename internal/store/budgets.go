package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/model"
)

const budgetColumns = `b.id, b.number, b.mechanic_id, b.customer_name, b.plate, b.vehicle_name, b.status,
	b.discount_cents, b.observations, b.created_at, b.updated_at, b.completed_at, COALESCE(p.full_name, '')`

// BudgetFilter narrows ListBudgets. Zero fields match everything.
type BudgetFilter struct {
	MechanicID uuid.UUID
	Status     model.Status
	Search     string
}

// BudgetUpdate holds the fields to change. Nil fields are left as they are.
// A non-nil Items replaces every line item of the budget.
type BudgetUpdate struct {
	MechanicID    *uuid.UUID
	CustomerName  *string
	Plate         *string
	VehicleName   *string
	Status        *model.Status
	DiscountCents *int64
	Observations  *string
	Items         *[]model.LineItem
	Now           time.Time
}

// CreateBudget inserts a budget and its line items in one transaction. The
// budget number is allocated by the insert itself.
func CreateBudget(ctx context.Context, db *sql.DB, b *model.Budget, items []model.LineItem) (*model.Budget, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO budgets (id, number, mechanic_id, customer_name, plate, vehicle_name, status, discount_cents, observations, completed_at)
		 SELECT ?, COALESCE(MAX(number), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ? FROM budgets`,
		b.ID, b.MechanicID, b.CustomerName, b.Plate, b.VehicleName, b.Status, b.DiscountCents, b.Observations, b.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating budget: %w", err)
	}

	if err := insertLineItems(ctx, tx, b.ID, items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing budget: %w", err)
	}

	return GetBudget(ctx, db, b.ID)
}

// GetBudget returns a budget with its line items and mechanic name.
// It does not apply a scope: callers authorize the returned row.
func GetBudget(ctx context.Context, db *sql.DB, id uuid.UUID) (*model.Budget, error) {
	b, err := scanBudget(db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+`
		 FROM budgets b LEFT JOIN profiles p ON p.id = b.mechanic_id
		 WHERE b.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting budget: %w", err)
	}

	if b.Items, err = listLineItems(ctx, db, id); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBudgets returns the budgets visible in scope, newest first, with items loaded
// so that totals can be shown.
func ListBudgets(ctx context.Context, db *sql.DB, scope model.Scope, f BudgetFilter) ([]model.Budget, error) {
	query := `SELECT ` + budgetColumns + `
	          FROM budgets b LEFT JOIN profiles p ON p.id = b.mechanic_id
	          WHERE (? OR b.mechanic_id = ?)`
	args := []any{scope.All, scope.UserID}

	if f.MechanicID != uuid.Nil {
		query += ` AND b.mechanic_id = ?`
		args = append(args, f.MechanicID)
	}
	if f.Status != "" {
		query += ` AND b.status = ?`
		args = append(args, f.Status)
	}
	if f.Search != "" {
		query += ` AND (b.customer_name LIKE ? OR b.vehicle_name LIKE ? OR b.plate LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like, like)
	}
	query += ` ORDER BY b.number DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}

	var budgets []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning budget: %w", err)
		}
		budgets = append(budgets, *b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing budgets: %w", err)
	}
	rows.Close()

	for i := range budgets {
		if budgets[i].Items, err = listLineItems(ctx, db, budgets[i].ID); err != nil {
			return nil, err
		}
	}
	return budgets, nil
}

// UpdateBudget applies u to a budget within scope in one transaction and
// reports whether the budget was changed. completed_at follows the new status.
// Outside an admin scope the budget must belong to the caller and be pending.
func UpdateBudget(ctx context.Context, db *sql.DB, scope model.Scope, id uuid.UUID, u BudgetUpdate) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	args := append(completedAtArgs(model.BudgetLifecycle, u.Status, u.Now),
		sql.Named("initial", model.BudgetLifecycle.Initial()),
		sql.Named("mechanic", u.MechanicID),
		sql.Named("customer", u.CustomerName),
		sql.Named("plate", u.Plate),
		sql.Named("vehicle", u.VehicleName),
		sql.Named("discount", u.DiscountCents),
		sql.Named("observations", u.Observations),
		sql.Named("id", id),
		sql.Named("all", scope.All),
		sql.Named("user", scope.UserID),
	)
	result, err := tx.ExecContext(ctx,
		`UPDATE budgets SET
		     mechanic_id = COALESCE(:mechanic, mechanic_id),
		     customer_name = COALESCE(:customer, customer_name),
		     plate = COALESCE(:plate, plate),
		     vehicle_name = COALESCE(:vehicle, vehicle_name),
		     discount_cents = COALESCE(:discount, discount_cents),
		     observations = COALESCE(:observations, observations),
		     completed_at = `+completedAtCase+`,
		     status = COALESCE(:status, status),
		     updated_at = :now
		 WHERE id = :id
		   AND (:all OR (mechanic_id = :user AND status = :initial))`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("updating budget: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, nil
	}

	if u.Items != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM budget_items WHERE budget_id = ?`, id); err != nil {
			return false, fmt.Errorf("clearing budget items: %w", err)
		}
		if err := insertLineItems(ctx, tx, id, *u.Items); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing budget: %w", err)
	}
	return true, nil
}

// DeleteBudget removes a budget with its line items and deactivates its public
// links. Only an admin scope may delete.
func DeleteBudget(ctx context.Context, db *sql.DB, scope model.Scope, id uuid.UUID, now time.Time) (bool, error) {
	if !scope.All {
		return false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM budget_items WHERE budget_id = ?`, id); err != nil {
		return false, fmt.Errorf("deleting budget items: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting budget: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, nil
	}

	if _, err := deactivateLinks(ctx, tx, model.Ref{Type: model.TypeBudget, ID: id}, now); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing budget delete: %w", err)
	}
	return true, nil
}

// insertLineItems writes items in order. total_cents is a generated column,
// so no total is ever taken from the caller.
func insertLineItems(ctx context.Context, tx *sql.Tx, budgetID uuid.UUID, items []model.LineItem) error {
	for i, it := range items {
		id := it.ID
		if id == uuid.Nil {
			var err error
			if id, err = uuid.NewV7(); err != nil {
				return fmt.Errorf("generating line item id: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budget_items (id, budget_id, service_name, service_category, quantity, unit_price_cents, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, budgetID, it.Name, it.Category, it.Quantity, it.UnitPriceCents, i,
		); err != nil {
			return fmt.Errorf("creating budget item: %w", err)
		}
	}
	return nil
}

func listLineItems(ctx context.Context, db *sql.DB, budgetID uuid.UUID) ([]model.LineItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, budget_id, service_name, service_category, quantity, unit_price_cents, position
		 FROM budget_items WHERE budget_id = ?
		 ORDER BY position`, budgetID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing budget items: %w", err)
	}
	defer rows.Close()

	var items []model.LineItem
	for rows.Next() {
		var it model.LineItem
		if err := rows.Scan(&it.ID, &it.BudgetID, &it.Name, &it.Category, &it.Quantity, &it.UnitPriceCents, &it.Position); err != nil {
			return nil, fmt.Errorf("scanning budget item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanBudget(row rowScanner) (*model.Budget, error) {
	b := &model.Budget{}
	err := row.Scan(&b.ID, &b.Number, &b.MechanicID, &b.CustomerName, &b.Plate, &b.VehicleName, &b.Status,
		&b.DiscountCents, &b.Observations, &b.CreatedAt, &b.UpdatedAt, &b.CompletedAt, &b.MechanicName)
	if err != nil {
		return nil, err
	}
	return b, nil
}
