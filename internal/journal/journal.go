// Package journal records script runs and per-script outcomes in SQLite so
// that past runs can be listed after the process exits. Engine bindings are
// never stored.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/scriptrun"
)

// Store is the SQLite data access layer for the run journal.
type Store struct {
	db *sql.DB
}

// Open opens the journal database at path with WAL mode enabled and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  execution       TEXT NOT NULL,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP,
  status          TEXT NOT NULL,
  error           TEXT
);

CREATE TABLE IF NOT EXISTS script_runs (
  id              INTEGER PRIMARY KEY,
  run_id          TEXT NOT NULL REFERENCES runs(id),
  seq             INTEGER NOT NULL,
  source          TEXT NOT NULL,
  engine_key      TEXT NOT NULL,
  disposition     TEXT NOT NULL,
  reason          TEXT,
  duration_ms     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_script_runs_run ON script_runs(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one row of the runs table.
type Run struct {
	ID         string
	Execution  string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Error      string
}

// ScriptRun is one row of the script_runs table.
type ScriptRun struct {
	ID          int64
	RunID       string
	Seq         int
	Source      string
	EngineKey   string
	Disposition string
	Reason      string
	Duration    time.Duration
}

var _ scriptrun.Recorder = (*Store)(nil)

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, runID, execution string, started time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, execution, started_at, status) VALUES (?, ?, ?, ?)",
		runID, execution, started, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("journal: begin run: %w", err)
	}
	return nil
}

// RecordOutcome appends one script outcome to a run.
func (s *Store) RecordOutcome(ctx context.Context, runID string, seq int, o scriptrun.Outcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO script_runs (run_id, seq, source, engine_key, disposition, reason, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, o.Source, o.Key, o.Disposition.String(), nullString(o.Reason), o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("journal: record outcome: %w", err)
	}
	return nil
}

// FinishRun closes a run; runErr nil means it succeeded.
func (s *Store) FinishRun(ctx context.Context, runID string, finished time.Time, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?",
		finished, status, nullString(msg), runID,
	)
	if err != nil {
		return fmt.Errorf("journal: finish run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := "SELECT id, execution, started_at, finished_at, status, error FROM runs ORDER BY started_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var finished sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.Execution, &r.StartedAt, &finished, &r.Status, &errMsg); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ScriptRuns returns the outcomes recorded for a run in execution order.
func (s *Store) ScriptRuns(ctx context.Context, runID string) ([]*ScriptRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, source, engine_key, disposition, reason, duration_ms
		 FROM script_runs WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: script runs: %w", err)
	}
	defer rows.Close()

	var out []*ScriptRun
	for rows.Next() {
		sr := &ScriptRun{}
		var reason sql.NullString
		var ms int64
		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.Seq, &sr.Source, &sr.EngineKey, &sr.Disposition, &reason, &ms); err != nil {
			return nil, fmt.Errorf("journal: scan script run: %w", err)
		}
		sr.Reason = reason.String
		sr.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, sr)
	}
	return out, rows.Err()
}

// nullString stores empty strings as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
