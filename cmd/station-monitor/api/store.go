package api

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides SQLite persistence for monitoring runs.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new store with the given database path.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better performance
	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		config_path TEXT NOT NULL,
		interval TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		started_at DATETIME,
		completed_at DATETIME,
		sample_count INTEGER DEFAULT 0,
		error_count INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records a new monitoring run.
func (s *Store) CreateRun(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO runs (id, config_path, interval, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.ConfigPath, run.Interval, run.Status, run.StartedAt)

	return err
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run Run
	var startedAt, completedAt sql.NullTime
	var interval, errMsg sql.NullString

	err := s.db.QueryRow(`
		SELECT id, config_path, interval, status, started_at, completed_at,
		       sample_count, error_count, error_message
		FROM runs WHERE id = ?
	`, id).Scan(
		&run.ID, &run.ConfigPath, &interval, &run.Status,
		&startedAt, &completedAt,
		&run.SampleCount, &run.ErrorCount, &errMsg,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if interval.Valid {
		run.Interval = interval.String
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	// Calculate duration if completed
	if run.StartedAt != nil && run.CompletedAt != nil {
		run.Duration = run.CompletedAt.Sub(*run.StartedAt).Round(time.Millisecond).String()
	}

	return &run, nil
}

// ListRuns retrieves all runs, ordered by most recent first.
func (s *Store) ListRuns(limit, offset int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, config_path, interval, status, started_at, completed_at,
		       sample_count, error_count, error_message
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt, completedAt sql.NullTime
		var interval, errMsg sql.NullString

		if err := rows.Scan(
			&run.ID, &run.ConfigPath, &interval, &run.Status,
			&startedAt, &completedAt,
			&run.SampleCount, &run.ErrorCount, &errMsg,
		); err != nil {
			return nil, err
		}

		if interval.Valid {
			run.Interval = interval.String
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		if startedAt.Valid {
			run.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}

		if run.StartedAt != nil && run.CompletedAt != nil {
			run.Duration = run.CompletedAt.Sub(*run.StartedAt).Round(time.Millisecond).String()
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CountRuns returns the total number of runs.
func (s *Store) CountRuns() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

// CompleteRun finalises a run with its sample statistics. A non-empty
// errMsg marks the run failed.
func (s *Store) CompleteRun(id string, sampleCount, errorCount int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := RunStatusCompleted
	if errMsg != "" {
		status = RunStatusFailed
	}

	_, err := s.db.Exec(`
		UPDATE runs
		SET status = ?, completed_at = ?, sample_count = ?, error_count = ?,
		    error_message = ?
		WHERE id = ?
	`, status, time.Now(), sampleCount, errorCount, errMsg, id)
	return err
}

// DeleteRun deletes a run record.
func (s *Store) DeleteRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	return err
}
