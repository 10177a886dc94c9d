package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_Fresh(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("getSchemaVersion() error = %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"runs", "scenarios", "periods", "schema_version"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if err := InitSchema(ctx, db); err != nil {
		t.Errorf("second InitSchema() error = %v", err)
	}
}

func TestInitSchema_RejectsUnknownVersion(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (99, datetime('now'))`); err != nil {
		t.Fatal(err)
	}

	err := InitSchema(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "unsupported schema version 99") {
		t.Errorf("expected unsupported version error, got %v", err)
	}
}

func TestValidateIntegrity_ForeignKeyViolation(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}

	// Orphan scenario row inserted with enforcement off.
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO scenarios
		(run_id, idx, n_experienced, n_inexperienced, p0, s0, delta_experienced, delta_inexperienced,
		 final_experienced, final_inexperienced)
		VALUES ('missing', 0, 1, 1, 0.1, 0.1, 0.8, 1.2, 0, 0)`); err != nil {
		t.Fatal(err)
	}

	err := ValidateIntegrity(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "foreign_key_check") {
		t.Errorf("expected foreign_key_check failure, got %v", err)
	}
}

func TestResetSchema(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO runs
		(id, created_at, mode, seed, periods, alpha, scenario_count) VALUES ('r', 'now', 'summary', 1, 1, 0.5, 0)`); err != nil {
		t.Fatal(err)
	}

	if err := ResetSchema(ctx, db); err != nil {
		t.Fatalf("ResetSchema() error = %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("runs has %d rows after reset, want 0", n)
	}
}
