package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Create database
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	// Reopen database
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	// Verify we can query it
	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	if err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open multiple times
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	// Final open should work
	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	// Verify schema is intact
	tables := []string{"runs", "iterations", "rule_applications", "rule_stats"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	path := "/nonexistent/dir/test.db"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// First close should succeed
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}

	// Second close should not panic (though may error)
	// We just verify it doesn't panic
	_ = s.Close()
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	db := s.DB()
	if db == nil {
		t.Error("DB() returned nil")
	}

	// Verify it's usable
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Schema table tests

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		table   string
		columns []string
	}{
		{"runs", []string{
			"id", "strategy", "stop_reason", "stop_message", "iterations", "nodes", "classes",
			"total_time_ns", "ruleset_hash", "engine_version", "ir_version",
		}},
		{"iterations", []string{
			"run_id", "idx", "nodes", "classes", "merges", "search_ns", "apply_ns", "rebuild_ns",
		}},
		{"rule_applications", []string{
			"run_id", "iteration", "rule", "admitted", "applied",
		}},
		{"rule_stats", []string{
			"run_id", "rule", "times_applied", "times_banned", "match_limit",
			"ban_length", "banned_until", "unbannable",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			columns := getTableColumns(t, s.db, tt.table)
			for _, col := range tt.columns {
				if !contains(columns, col) {
					t.Errorf("%s table missing column %q", tt.table, col)
				}
			}
		})
	}
}

func TestSchema_RunsIndexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "runs")
	if !contains(indexes, "idx_runs_strategy") {
		t.Errorf("runs table missing index idx_runs_strategy, got %v", indexes)
	}
}

// Constraint tests

func TestConstraint_IterationRequiresRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO iterations (run_id, idx, nodes, classes, merges, search_ns, apply_ns, rebuild_ns)
		VALUES ('nonexistent', 0, 1, 1, 0, 0, 0, 0)
	`)
	if err == nil {
		t.Error("expected foreign key constraint violation, got nil")
	}
}

func TestConstraint_RuleApplicationRequiresIteration(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO runs (id, strategy, stop_reason, stop_message, iterations, nodes, classes,
			total_time_ns, ruleset_hash, engine_version, ir_version)
		VALUES ('run1', 'default', 'saturated', '', 1, 1, 1, 0, '', '0.1.0', '1')
	`)
	if err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}

	// Iteration 0 was never written.
	_, err = s.db.Exec(`
		INSERT INTO rule_applications (run_id, iteration, rule, admitted, applied)
		VALUES ('run1', 0, 'comm', 1, 1)
	`)
	if err == nil {
		t.Error("expected foreign key constraint violation, got nil")
	}
}

func TestConstraint_UniqueIterationIndex(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO runs (id, strategy, stop_reason, stop_message, iterations, nodes, classes,
			total_time_ns, ruleset_hash, engine_version, ir_version)
		VALUES ('run1', 'default', 'saturated', '', 1, 1, 1, 0, '', '0.1.0', '1')
	`)
	if err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}

	insert := `
		INSERT INTO iterations (run_id, idx, nodes, classes, merges, search_ns, apply_ns, rebuild_ns)
		VALUES ('run1', 0, 1, 1, 0, 0, 0, 0)
	`
	if _, err := s.db.Exec(insert); err != nil {
		t.Fatalf("failed to insert first iteration: %v", err)
	}
	if _, err := s.db.Exec(insert); err == nil {
		t.Error("expected PRIMARY KEY violation on (run_id, idx), got nil")
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if version := readUserVersion(t, s.db); version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_IndexesExist(t *testing.T) {
	s := createTestStore(t)

	for table, index := range map[string]string{
		"rule_applications": "idx_rule_applications_rule",
		"rule_stats":        "idx_rule_stats_banned",
	} {
		if indexes := getTableIndexes(t, s.db, table); !contains(indexes, index) {
			t.Errorf("%s missing index %s, got %v", table, index, indexes)
		}
	}
}

func TestMigration_IdempotentUpgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		if version := readUserVersion(t, s.db); version != currentSchemaVersion {
			t.Errorf("iteration %d: user_version = %d, want %d", i, version, currentSchemaVersion)
		}
		s.Close()
	}
}

func TestMigration_UpgradeFromOlderVersions(t *testing.T) {
	for _, from := range []int{0, 1} {
		t.Run(fmt.Sprintf("v%d", from), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.db")

			// Base schema plus only the migrations up to from.
			db, err := sql.Open("sqlite3", path)
			if err != nil {
				t.Fatalf("failed to open database: %v", err)
			}
			if _, err := db.Exec(schemaSQL); err != nil {
				t.Fatalf("failed to apply schema: %v", err)
			}
			for _, m := range migrations {
				if m.version > from {
					break
				}
				if _, err := db.Exec(m.stmt); err != nil {
					t.Fatalf("failed to apply v%d: %v", m.version, err)
				}
			}
			if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", from)); err != nil {
				t.Fatalf("failed to set user_version: %v", err)
			}
			db.Close()

			s, err := Open(path)
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			defer s.Close()

			if version := readUserVersion(t, s.db); version != currentSchemaVersion {
				t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
			}
			if indexes := getTableIndexes(t, s.db, "rule_stats"); !contains(indexes, "idx_rule_stats_banned") {
				t.Errorf("expected idx_rule_stats_banned after migration, got %v", indexes)
			}
		})
	}
}

func TestMigration_VersionsAscend(t *testing.T) {
	for i, m := range migrations {
		if m.version != i+1 {
			t.Errorf("migrations[%d].version = %d, want %d", i, m.version, i+1)
		}
	}
}

// Helper functions

func readUserVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	return version
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}
