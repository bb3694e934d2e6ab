// Package history records build reports in a local SQLite database so past
// runs stay inspectable from the CLI.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Failure is one failed node captured in a stored record.
type Failure struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Record is one build run as stored.
type Record struct {
	BuildID          string
	StartedAt        time.Time
	Duration         time.Duration
	Outcome          string // success|failed|canceled
	Rendered         int
	SkippedUnchanged int
	Failed           int
	SkippedDeps      int
	SourceCommit     string
	Failures         []Failure
}

// Store persists build records. Use ":memory:" for an ephemeral database.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the history database and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		rendered INTEGER NOT NULL,
		skipped_unchanged INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		skipped_deps INTEGER NOT NULL,
		source_commit TEXT,
		failures BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_builds_build_id ON builds(build_id);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one build record.
func (s *Store) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failuresJSON []byte
	if len(rec.Failures) > 0 {
		var err error
		failuresJSON, err = json.Marshal(rec.Failures)
		if err != nil {
			return fmt.Errorf("marshal failures: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds
		 (build_id, started_at, duration_ms, outcome, rendered, skipped_unchanged, failed, skipped_deps, source_commit, failures)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BuildID, rec.StartedAt.Unix(), rec.Duration.Milliseconds(), rec.Outcome,
		rec.Rendered, rec.SkippedUnchanged, rec.Failed, rec.SkippedDeps,
		rec.SourceCommit, failuresJSON,
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}
	return nil
}

// Recent returns the newest records, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT build_id, started_at, duration_ms, outcome, rendered, skipped_unchanged, failed, skipped_deps, source_commit, failures
		 FROM builds ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query build records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		var startedUnix, durationMS int64
		var commit sql.NullString
		var failuresJSON []byte
		if err := rows.Scan(&rec.BuildID, &startedUnix, &durationMS, &rec.Outcome,
			&rec.Rendered, &rec.SkippedUnchanged, &rec.Failed, &rec.SkippedDeps,
			&commit, &failuresJSON); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		rec.StartedAt = time.Unix(startedUnix, 0).UTC()
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.SourceCommit = commit.String
		if len(failuresJSON) > 0 {
			if err := json.Unmarshal(failuresJSON, &rec.Failures); err != nil {
				return nil, fmt.Errorf("decode failures: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
