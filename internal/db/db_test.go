package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func schemaVersion(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var v int
	if err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	return v
}

func TestOpenFreshDatabase(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	if got, want := schemaVersion(t, conn), len(migrations); got != want {
		t.Errorf("expected schema version %d, got %d", want, got)
	}
	if _, err := conn.Exec("INSERT INTO equipment (id, name, process, capacity_kg) VALUES ('eq1', 'Washer', 'washing', 500)"); err != nil {
		t.Errorf("equipment insert failed: %v", err)
	}
}

func TestMigrationsUpgradeOldDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	old, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := createVersionTable(old); err != nil {
		t.Fatal(err)
	}
	// A database created before reservations existed.
	tx, err := old.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := migrationV1(tx); err != nil {
		t.Fatalf("migrationV1 failed: %v", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	old.Close()

	conn, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	if got, want := schemaVersion(t, conn), len(migrations); got != want {
		t.Errorf("expected schema version %d, got %d", want, got)
	}
	_, err = conn.Exec(`INSERT INTO equipment_bookings (session_id, plan_id, equipment_id, start_ns, end_ns, booked_by)
		VALUES ('s1', 'p1', 'eq1', 1, 2, 'qa-lead')`)
	if err != nil {
		t.Errorf("booking insert after migration failed: %v", err)
	}
}

func TestSchemaRejectsEmptyWindow(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "check.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	_, err = conn.Exec(`INSERT INTO equipment_bookings (session_id, plan_id, equipment_id, start_ns, end_ns)
		VALUES ('s1', 'p1', 'eq1', 5, 5)`)
	if err == nil {
		t.Error("expected CHECK constraint to reject a zero-length window")
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := Path(filepath.Join(t.TempDir(), "nested", "data"))
	conn, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	conn.Close()
	if filepath.Base(path) != FileName {
		t.Errorf("unexpected database file name %s", path)
	}
}
