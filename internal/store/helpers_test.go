package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/model"
)

// newUser creates an identity with a named profile.
func newUser(t *testing.T, database *sql.DB, email, name string, role model.Role) *model.User {
	t.Helper()
	ctx := context.Background()

	u, err := CreateIdentity(ctx, database, email, "hash")
	if err != nil {
		t.Fatalf("CreateIdentity(%s): %v", email, err)
	}
	if err := UpdateProfile(ctx, database, u.ID, name, "", role); err != nil {
		t.Fatalf("UpdateProfile(%s): %v", email, err)
	}
	u, _ = GetUser(ctx, database, u.ID)
	return u
}

func newChecklist(t *testing.T, database *sql.DB, mechanicID uuid.UUID, items ...string) *model.Checklist {
	t.Helper()

	c := &model.Checklist{
		ID:           uuid.Must(uuid.NewV7()),
		MechanicID:   mechanicID,
		CustomerName: "Maria",
		Plate:        "ABC-1234",
		VehicleName:  "Fiat Uno",
		Priority:     model.PriorityNormal,
		Status:       model.ChecklistPending,
	}
	var drafts []model.ChecklistItem
	for _, name := range items {
		drafts = append(drafts, model.ChecklistItem{ID: uuid.Must(uuid.NewV7()), Name: name, Category: "Motor"})
	}

	created, err := CreateChecklist(context.Background(), database, c, drafts)
	if err != nil {
		t.Fatalf("CreateChecklist: %v", err)
	}
	return created
}

func newBudget(t *testing.T, database *sql.DB, mechanicID uuid.UUID, items ...model.LineItem) *model.Budget {
	t.Helper()

	b := &model.Budget{
		ID:           uuid.Must(uuid.NewV7()),
		MechanicID:   mechanicID,
		CustomerName: "João",
		VehicleName:  "Gol",
		Status:       model.BudgetPending,
	}
	created, err := CreateBudget(context.Background(), database, b, items)
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	return created
}

func ptr[T any](v T) *T { return &v }

// budgetItemTotals returns the stored generated totals keyed by item ID.
func budgetItemTotals(ctx context.Context, db *sql.DB, budgetID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, total_cents FROM budget_items WHERE budget_id = ?`, budgetID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing budget totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[uuid.UUID]int64)
	for rows.Next() {
		var id uuid.UUID
		var total int64
		if err := rows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("scanning budget total: %w", err)
		}
		totals[id] = total
	}
	return totals, rows.Err()
}
