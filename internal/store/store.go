// Package store persists analysis tasks and their results in SQLite so
// clients can retrieve them later by opaque identifier.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/FunctionalFactory/music-assistant-v2/internal/errors"
)

// Status values for a task lifecycle.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Task is one persisted analysis request.
type Task struct {
	ID         string
	Status     string
	Filename   string
	ResultJSON string
	MusicXML   string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store manages task persistence backed by SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    status      TEXT NOT NULL,
    filename    TEXT NOT NULL DEFAULT '',
    result_json TEXT NOT NULL DEFAULT '',
    musicxml    TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`

// Open initializes or connects to the task database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new pending task.
func (s *Store) Create(ctx context.Context, id, filename string) (*Task, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, status, filename, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, StatusPending, filename, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.Get(ctx, id)
}

// Get retrieves a task by ID.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, filename, result_json, musicxml, error, created_at, updated_at
         FROM tasks WHERE id = ?`, id)

	var t Task
	var created, updated string
	err := row.Scan(&t.ID, &t.Status, &t.Filename, &t.ResultJSON, &t.MusicXML, &t.Error, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &t, nil
}

// MarkProcessing transitions a task to the processing state.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.update(ctx, id, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		StatusProcessing, timestamp(), id)
}

// Complete stores the full result and marks the task complete.
func (s *Store) Complete(ctx context.Context, id, resultJSON, musicXML string) error {
	return s.update(ctx, id,
		`UPDATE tasks SET status = ?, result_json = ?, musicxml = ?, updated_at = ? WHERE id = ?`,
		StatusComplete, resultJSON, musicXML, timestamp(), id)
}

// Fail records an error message and marks the task failed.
func (s *Store) Fail(ctx context.Context, id, errMsg string) error {
	return s.update(ctx, id, `UPDATE tasks SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, errMsg, timestamp(), id)
}

// PruneOlderThan deletes finished tasks older than the cutoff and returns
// the number removed.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE status IN (?, ?) AND updated_at < ?`,
		StatusComplete, StatusFailed, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrTaskNotFound, id)
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
