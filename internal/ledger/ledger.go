// Package ledger records run outcomes in a SQLite database kept inside the
// output tree. Strict resume consults it before trusting files on disk.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Status values recorded for inversion jobs and stage applications.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// RunStatus values recorded for whole runs.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// DefaultFilename is the ledger database name inside an output directory.
const DefaultFilename = ".invertix.db"

// schema is applied on every open. All statements are idempotent, so an
// existing ledger is reused as is.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	config_path TEXT NOT NULL,
	artifact TEXT NOT NULL DEFAULT '',
	outdir TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	started_at INTEGER NOT NULL,
	finished_at INTEGER
);

CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	volume TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	finished_at INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS stage_applications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	volume TEXT NOT NULL,
	variant TEXT NOT NULL,
	output_dir TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	finished_at INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_stage_volume ON jobs(stage, volume);
CREATE INDEX IF NOT EXISTS idx_stage_applications_key ON stage_applications(stage, volume, variant);
`

// Ledger is a run-outcome store over a SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens the ledger database at path, creating it, its parent
// directory and its schema when missing.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// OpenDB wraps an existing database handle. The caller keeps ownership of
// the handle's lifetime; Close is still safe to call.
func OpenDB(db *sql.DB) (*Ledger, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}
