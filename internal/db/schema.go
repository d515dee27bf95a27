package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete modern schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository
// tests load it through GetSchemaSQL() instead of declaring their own
// tables, so a column referenced by code but missing here fails at once.
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Run `make test` to verify alignment
const SchemaSQL = `
-- Equipment (registered machines; only status changes after registration)
CREATE TABLE IF NOT EXISTS equipment (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	process TEXT NOT NULL CHECK(process IN ('washing', 'steaming', 'drying', 'cutting', 'packaging')),
	capacity_kg REAL NOT NULL CHECK(capacity_kg > 0),
	status TEXT NOT NULL CHECK(status IN ('idle', 'running', 'cleaning', 'maintenance')) DEFAULT 'idle',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Equipment bookings (windows held by confirmed plans, across sessions)
-- Times are UTC unix nanoseconds so overlap checks compare integers.
CREATE TABLE IF NOT EXISTS equipment_bookings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	plan_id TEXT NOT NULL,
	equipment_id TEXT NOT NULL,
	order_id TEXT,
	start_ns INTEGER NOT NULL,
	end_ns INTEGER NOT NULL,
	booked_by TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	CHECK(end_ns > start_ns)
);

CREATE INDEX IF NOT EXISTS idx_bookings_equipment ON equipment_bookings(equipment_id, start_ns);
CREATE INDEX IF NOT EXISTS idx_bookings_session ON equipment_bookings(session_id);
`

// InitSchema creates the database schema or migrates an existing one.
func InitSchema(db *sql.DB) error {
	// Check if schema_version table exists to determine if this is a fresh install
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}
	if tableCount > 0 {
		return RunMigrations(db)
	}

	// Fresh install - create modern schema directly and mark every
	// migration as applied
	if _, err := db.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := createVersionTable(db); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
