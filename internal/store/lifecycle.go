package store

import (
	"database/sql"
	"time"

	"github.com/erazemk/oficina/internal/model"
)

// completedAtCase is the SQL form of the completion rule shared by every
// resource table: completed_at is set while the row is in its lifecycle's
// terminal state and cleared otherwise. A row that stays terminal keeps its
// original timestamp. Bind it with completedAtArgs.
const completedAtCase = `CASE
		         WHEN :status IS NULL THEN completed_at
		         WHEN :status = :terminal THEN COALESCE(completed_at, :now)
		         ELSE NULL END`

// completedAtArgs binds :terminal, :status and :now for completedAtCase. A
// nil status leaves completed_at as it is.
func completedAtArgs(lc model.Lifecycle, status *model.Status, now time.Time) []any {
	return []any{
		sql.Named("terminal", lc.Terminal()),
		sql.Named("status", status),
		sql.Named("now", now),
	}
}
