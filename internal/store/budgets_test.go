package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/oficina/internal/db"
	"github.com/erazemk/oficina/internal/model"
)

func TestCreateBudgetNumbersAndTotals(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	mech := newUser(t, database, "m@example.com", "M", model.RoleMechanic)

	b1 := newBudget(t, database, mech.ID,
		model.LineItem{Name: "Oil change", Category: "Service", Quantity: 1, UnitPriceCents: 12000},
		model.LineItem{Name: "Filter", Category: "Parts", Quantity: 2, UnitPriceCents: 3550},
	)
	b2 := newBudget(t, database, mech.ID)

	if b1.Number != 1 || b2.Number != 2 {
		t.Errorf("expected sequential numbers 1 and 2, got %d and %d", b1.Number, b2.Number)
	}
	if b1.Subtotal() != 19100 {
		t.Errorf("expected subtotal 19100, got %d", b1.Subtotal())
	}

	totals, err := budgetItemTotals(ctx, database, b1.ID)
	if err != nil {
		t.Fatalf("budgetItemTotals: %v", err)
	}
	for _, it := range b1.Items {
		if totals[it.ID] != it.Total() {
			t.Errorf("stored total %d for %s, computed %d", totals[it.ID], it.Name, it.Total())
		}
	}
}

func TestGeneratedTotalCannotBeWritten(t *testing.T) {
	database := db.NewTestDB(t)
	mech := newUser(t, database, "m@example.com", "M", model.RoleMechanic)
	b := newBudget(t, database, mech.ID)

	_, err := database.Exec(
		`INSERT INTO budget_items (id, budget_id, service_name, quantity, unit_price_cents, total_cents)
		 VALUES ('x', ?, 'Bogus', 2, 100, 999)`, b.ID)
	if err == nil {
		t.Error("expected writing a generated total to fail")
	}

	_, err = database.Exec(
		`INSERT INTO budget_items (id, budget_id, service_name, quantity, unit_price_cents)
		 VALUES ('y', ?, 'Negative', -1, 100)`, b.ID)
	if err == nil {
		t.Error("expected negative quantity to be rejected")
	}

	_, err = database.Exec(
		`INSERT INTO budget_items (id, budget_id, service_name, quantity, unit_price_cents)
		 VALUES ('z', ?, 'Huge', 1099511627776, 1099511627776)`, b.ID)
	if err == nil {
		t.Error("expected an overflowing line to be rejected")
	}
}

func TestUpdateBudgetReplacesItemsAndStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	mech := newUser(t, database, "m@example.com", "M", model.RoleMechanic)
	b := newBudget(t, database, mech.ID, model.LineItem{Name: "Old", Quantity: 1, UnitPriceCents: 100})
	scope := model.Scope{UserID: mech.ID}
	now := time.Now().UTC().Truncate(time.Second)

	items := []model.LineItem{
		{Name: "Pads", Quantity: 4, UnitPriceCents: 2500},
		{Name: "Labour", Quantity: 2, UnitPriceCents: 8000},
	}
	ok, err := UpdateBudget(ctx, database, scope, b.ID, BudgetUpdate{Items: &items, DiscountCents: ptr(int64(1000)), Now: now})
	if err != nil || !ok {
		t.Fatalf("UpdateBudget: ok=%v err=%v", ok, err)
	}

	got, _ := GetBudget(ctx, database, b.ID)
	if len(got.Items) != 2 || got.Items[0].Name != "Pads" {
		t.Fatalf("expected items replaced, got %+v", got.Items)
	}
	if got.Final() != 25000 {
		t.Errorf("expected final 25000, got %d", got.Final())
	}

	ok, _ = UpdateBudget(ctx, database, scope, b.ID, BudgetUpdate{Status: ptr(model.BudgetApproved), Now: now})
	if !ok {
		t.Fatal("expected pending budget to be transitioned by its owner")
	}
	got, _ = GetBudget(ctx, database, b.ID)
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("expected completed_at %v, got %v", now, got.CompletedAt)
	}

	// No longer pending: the owner's scope cannot touch it.
	ok, _ = UpdateBudget(ctx, database, scope, b.ID, BudgetUpdate{Status: ptr(model.BudgetPending), Now: now})
	if ok {
		t.Error("expected approved budget to be immutable for mechanic scope")
	}

	ok, _ = UpdateBudget(ctx, database, model.Scope{All: true}, b.ID, BudgetUpdate{Status: ptr(model.BudgetRejected), Now: now})
	if !ok {
		t.Fatal("expected admin to reject approved budget")
	}
	got, _ = GetBudget(ctx, database, b.ID)
	if got.CompletedAt != nil {
		t.Errorf("expected completed_at cleared, got %v", got.CompletedAt)
	}
}

func TestUpdateBudgetInvalidItemsRollBack(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	mech := newUser(t, database, "m@example.com", "M", model.RoleMechanic)
	b := newBudget(t, database, mech.ID, model.LineItem{Name: "Keep", Quantity: 1, UnitPriceCents: 100})

	items := []model.LineItem{
		{Name: "Fine", Quantity: 1, UnitPriceCents: 100},
		{Name: "Broken", Quantity: -3, UnitPriceCents: 100},
	}
	_, err := UpdateBudget(ctx, database, model.Scope{All: true}, b.ID, BudgetUpdate{Items: &items, CustomerName: ptr("Changed"), Now: time.Now()})
	if err == nil {
		t.Fatal("expected error for negative quantity")
	}

	got, _ := GetBudget(ctx, database, b.ID)
	if got.CustomerName != "João" || len(got.Items) != 1 || got.Items[0].Name != "Keep" {
		t.Errorf("expected budget unchanged after failed update, got %+v", got)
	}
}

func TestListBudgetsScope(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	m1 := newUser(t, database, "m1@example.com", "One", model.RoleMechanic)
	m2 := newUser(t, database, "m2@example.com", "Two", model.RoleMechanic)

	newBudget(t, database, m1.ID, model.LineItem{Name: "A", Quantity: 1, UnitPriceCents: 500})
	newBudget(t, database, m2.ID)

	own, err := ListBudgets(ctx, database, model.Scope{UserID: m1.ID}, BudgetFilter{})
	if err != nil {
		t.Fatalf("ListBudgets: %v", err)
	}
	if len(own) != 1 || own[0].Subtotal() != 500 {
		t.Errorf("expected own budget with items loaded, got %+v", own)
	}

	all, _ := ListBudgets(ctx, database, model.Scope{All: true}, BudgetFilter{Status: model.BudgetPending})
	if len(all) != 2 || all[0].Number != 2 {
		t.Errorf("expected 2 budgets newest first, got %+v", all)
	}
}

func TestDeleteBudgetCascades(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	mech := newUser(t, database, "m@example.com", "M", model.RoleMechanic)
	b := newBudget(t, database, mech.ID, model.LineItem{Name: "A", Quantity: 1, UnitPriceCents: 500})
	ref := model.Ref{Type: model.TypeBudget, ID: b.ID}
	GetOrCreateLink(ctx, database, ref, "budget-token")

	ok, err := DeleteBudget(ctx, database, model.Scope{All: true}, b.ID, time.Now())
	if err != nil || !ok {
		t.Fatalf("DeleteBudget: ok=%v err=%v", ok, err)
	}

	var items int
	database.QueryRow(`SELECT COUNT(*) FROM budget_items`).Scan(&items)
	if items != 0 {
		t.Errorf("expected items removed, got %d", items)
	}
	if l, _ := LookupActiveLink(ctx, database, "budget-token"); l != nil {
		t.Error("expected link deactivated")
	}

	if ok, _ := DeleteBudget(ctx, database, model.Scope{All: true}, b.ID, time.Now()); ok {
		t.Error("expected second delete to report missing budget")
	}
}
