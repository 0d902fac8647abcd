package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/oficina/internal/model"
)

// GetResource loads the checklist or budget ref points at, or returns nil if
// it does not exist.
func GetResource(ctx context.Context, db *sql.DB, ref model.Ref) (model.Resource, error) {
	switch ref.Type {
	case model.TypeChecklist:
		c, err := GetChecklist(ctx, db, ref.ID)
		if err != nil || c == nil {
			return nil, err
		}
		return c, nil
	case model.TypeBudget:
		b, err := GetBudget(ctx, db, ref.ID)
		if err != nil || b == nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown resource type %q", ref.Type)
}

// resourceTable returns the table holding resources of type t.
func resourceTable(t model.ResourceType) (string, error) {
	switch t {
	case model.TypeChecklist:
		return "checklists", nil
	case model.TypeBudget:
		return "budgets", nil
	}
	return "", fmt.Errorf("unknown resource type %q", t)
}
