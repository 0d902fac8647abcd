package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS profiles (
    id         TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    full_name  TEXT NOT NULL DEFAULT '',
    username   TEXT,
    role       TEXT NOT NULL DEFAULT 'mechanic' CHECK (role IN ('admin', 'mechanic')),
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username
    ON profiles(username) WHERE username IS NOT NULL;

CREATE TABLE IF NOT EXISTS checklists (
    id                   TEXT PRIMARY KEY,
    mechanic_id          TEXT NOT NULL REFERENCES profiles(id),
    customer_name        TEXT NOT NULL,
    plate                TEXT NOT NULL DEFAULT '',
    vehicle_name         TEXT NOT NULL DEFAULT '',
    priority             TEXT NOT NULL DEFAULT 'normal' CHECK (priority IN ('low', 'normal', 'high', 'urgent')),
    status               TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed', 'cancelled')),
    general_observations TEXT NOT NULL DEFAULT '',
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at         DATETIME,
    CHECK ((status = 'completed') = (completed_at IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_checklists_mechanic ON checklists(mechanic_id);

CREATE TABLE IF NOT EXISTS checklist_items (
    id           TEXT PRIMARY KEY,
    checklist_id TEXT NOT NULL REFERENCES checklists(id) ON DELETE CASCADE,
    item_name    TEXT NOT NULL,
    category     TEXT NOT NULL DEFAULT '',
    checked      INTEGER NOT NULL DEFAULT 0 CHECK (checked IN (0, 1)),
    observation  TEXT NOT NULL DEFAULT '',
    position     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_checklist_items_checklist ON checklist_items(checklist_id);

CREATE TABLE IF NOT EXISTS checklist_photos (
    id           TEXT PRIMARY KEY,
    checklist_id TEXT NOT NULL REFERENCES checklists(id) ON DELETE CASCADE,
    data         BLOB NOT NULL,
    mime         TEXT NOT NULL,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS budgets (
    id             TEXT PRIMARY KEY,
    number         INTEGER NOT NULL UNIQUE,
    mechanic_id    TEXT NOT NULL REFERENCES profiles(id),
    customer_name  TEXT NOT NULL,
    plate          TEXT NOT NULL DEFAULT '',
    vehicle_name   TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
    discount_cents INTEGER NOT NULL DEFAULT 0 CHECK (discount_cents >= 0),
    observations   TEXT NOT NULL DEFAULT '',
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at   DATETIME,
    CHECK ((status = 'approved') = (completed_at IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_budgets_mechanic ON budgets(mechanic_id);

CREATE TABLE IF NOT EXISTS budget_items (
    id               TEXT PRIMARY KEY,
    budget_id        TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
    service_name     TEXT NOT NULL,
    service_category TEXT NOT NULL DEFAULT '',
    quantity         INTEGER NOT NULL CHECK (quantity BETWEEN 0 AND 1000000),
    unit_price_cents INTEGER NOT NULL CHECK (unit_price_cents BETWEEN 0 AND 10000000000),
    total_cents      INTEGER GENERATED ALWAYS AS (quantity * unit_price_cents) STORED,
    position         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_budget_items_budget ON budget_items(budget_id);

CREATE TABLE IF NOT EXISTS public_links (
    token          TEXT PRIMARY KEY,
    resource_type  TEXT NOT NULL CHECK (resource_type IN ('checklist', 'budget')),
    resource_id    TEXT NOT NULL,
    is_active      INTEGER NOT NULL DEFAULT 1 CHECK (is_active IN (0, 1)),
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deactivated_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_public_links_active
    ON public_links(resource_type, resource_id) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
