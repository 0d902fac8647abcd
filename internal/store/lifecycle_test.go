package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/oficina/internal/db"
	"github.com/erazemk/oficina/internal/model"
)

// Both resource tables follow the same completion rule, driven only by their
// lifecycle's terminal state.
func TestCompletedAtFollowsLifecycle(t *testing.T) {
	type setStatus func(ctx context.Context, database *sql.DB, id uuid.UUID, s *model.Status, now time.Time) (bool, error)

	admin := model.Scope{All: true}
	tests := []struct {
		name   string
		typ    model.ResourceType
		create func(t *testing.T, database *sql.DB, mechanicID uuid.UUID) uuid.UUID
		update setStatus
	}{
		{
			name: "checklist",
			typ:  model.TypeChecklist,
			create: func(t *testing.T, database *sql.DB, mechanicID uuid.UUID) uuid.UUID {
				return newChecklist(t, database, mechanicID).ID
			},
			update: func(ctx context.Context, database *sql.DB, id uuid.UUID, s *model.Status, now time.Time) (bool, error) {
				return UpdateChecklist(ctx, database, admin, id, ChecklistUpdate{Status: s, CustomerName: ptr("Maria"), Now: now})
			},
		},
		{
			name: "budget",
			typ:  model.TypeBudget,
			create: func(t *testing.T, database *sql.DB, mechanicID uuid.UUID) uuid.UUID {
				return newBudget(t, database, mechanicID).ID
			},
			update: func(ctx context.Context, database *sql.DB, id uuid.UUID, s *model.Status, now time.Time) (bool, error) {
				return UpdateBudget(ctx, database, admin, id, BudgetUpdate{Status: s, CustomerName: ptr("João"), Now: now})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := db.NewTestDB(t)
			ctx := context.Background()
			mech := newUser(t, database, "m@example.com", "M", model.RoleMechanic)
			id := tt.create(t, database, mech.ID)
			lc := model.LifecycleOf(tt.typ)
			now := time.Now().UTC().Truncate(time.Second)

			completedAt := func() *time.Time {
				t.Helper()
				r, err := GetResource(ctx, database, model.Ref{Type: tt.typ, ID: id})
				if err != nil || r == nil {
					t.Fatalf("GetResource: r=%v err=%v", r, err)
				}
				return r.CompletedTime()
			}
			apply := func(s *model.Status, at time.Time) {
				t.Helper()
				if ok, err := tt.update(ctx, database, id, s, at); err != nil || !ok {
					t.Fatalf("update to %v: ok=%v err=%v", s, ok, err)
				}
			}

			if completedAt() != nil {
				t.Fatal("a new resource must not carry completed_at")
			}

			apply(ptr(lc.Terminal()), now)
			if got := completedAt(); got == nil || !got.Equal(now) {
				t.Fatalf("expected completed_at %v, got %v", now, got)
			}

			apply(ptr(lc.Terminal()), now.Add(time.Hour))
			if got := completedAt(); got == nil || !got.Equal(now) {
				t.Errorf("re-entering %s must keep %v, got %v", lc.Terminal(), now, got)
			}

			apply(nil, now.Add(2*time.Hour))
			if got := completedAt(); got == nil || !got.Equal(now) {
				t.Errorf("an update without status must keep %v, got %v", now, got)
			}

			apply(ptr(lc.Initial()), now)
			if got := completedAt(); got != nil {
				t.Errorf("leaving %s must clear completed_at, got %v", lc.Terminal(), got)
			}
		})
	}
}
