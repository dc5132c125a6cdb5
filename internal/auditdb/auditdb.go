// Package auditdb maintains a local SQLite index of written report
// bundles. It is a best-effort convenience for querying past runs; it
// is never consulted during workflow execution and never caches the
// device graph itself, since the report bundle directory remains the
// sole source of truth for evidence.
package auditdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection holding the report-run index.
type DB struct {
	conn *sql.DB
	path string
}

// New opens (creating if necessary) the audit database at path,
// applying pragmas and running any pending migrations.
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the filesystem path the database was opened from.
func (db *DB) Path() string {
	return db.path
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS report_runs (
		run_id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		target TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		report_root TEXT NOT NULL,
		created_at_utc TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_report_runs_action ON report_runs(action)`,
	`CREATE INDEX IF NOT EXISTS idx_report_runs_created_at ON report_runs(created_at_utc)`,
}

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	row := db.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		version := i + 1
		if version <= current {
			continue
		}
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}
	return nil
}

// Run is one indexed report-run record.
type Run struct {
	RunID        string
	Action       string
	Target       string
	Status       string
	ReportRoot   string
	CreatedAtUTC string
}

// RecordRun upserts a run's index entry after its report bundle has
// been written. Failure to index is never fatal to the workflow that
// produced the bundle; callers should log and continue.
func (db *DB) RecordRun(r Run) error {
	_, err := db.conn.Exec(`
		INSERT INTO report_runs (run_id, action, target, status, report_root, created_at_utc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			action = excluded.action,
			target = excluded.target,
			status = excluded.status,
			report_root = excluded.report_root,
			created_at_utc = excluded.created_at_utc
	`, r.RunID, r.Action, r.Target, r.Status, r.ReportRoot, r.CreatedAtUTC)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

// RunByID looks up a single indexed run.
func (db *DB) RunByID(runID string) (Run, bool, error) {
	row := db.conn.QueryRow(`
		SELECT run_id, action, target, status, report_root, created_at_utc
		FROM report_runs WHERE run_id = ?
	`, runID)
	var r Run
	err := row.Scan(&r.RunID, &r.Action, &r.Target, &r.Status, &r.ReportRoot, &r.CreatedAtUTC)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("query run %s: %w", runID, err)
	}
	return r, true, nil
}

// RunsByAction returns indexed runs for a given action, most recent first.
func (db *DB) RunsByAction(action string) ([]Run, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, action, target, status, report_root, created_at_utc
		FROM report_runs WHERE action = ? ORDER BY created_at_utc DESC
	`, action)
	if err != nil {
		return nil, fmt.Errorf("query runs by action: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Action, &r.Target, &r.Status, &r.ReportRoot, &r.CreatedAtUTC); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
