// Package journal keeps completions a worker could not report in a local SQLite file
// so they survive a restart and can be replayed with `dispatch reconcile`.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/ports"
)

const schema = `CREATE TABLE IF NOT EXISTS unreported_completions (
  id          TEXT PRIMARY KEY,
  job_id      TEXT NOT NULL,
  status      TEXT NOT NULL,
  result      TEXT,
  reason      TEXT NOT NULL DEFAULT '',
  recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS unreported_completions_recorded_at_idx
  ON unreported_completions(recorded_at);`

var _ ports.CompletionJournal = (*SQLiteJournal)(nil)

// SQLiteJournal implements ports.CompletionJournal on a single SQLite file.
type SQLiteJournal struct {
	db *sql.DB
}

// Open creates the file and its directory when missing and ensures the table exists.
func Open(ctx context.Context, path string) (*SQLiteJournal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Concurrent worker loops share the file; one writer at a time avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, stmt := range []string{"PRAGMA busy_timeout = 5000;", "PRAGMA journal_mode = WAL;", schema} {
		if _, err := db.ExecContext(pctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap journal: %w", err)
		}
	}
	return &SQLiteJournal{db: db}, nil
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error { return j.db.Close() }

// Record stores entry. A blank ID or zero RecordedAt is filled in.
func (j *SQLiteJournal) Record(ctx context.Context, entry model.JournalEntry) error {
	if entry.JobID == "" {
		return errors.New("journal entry requires a job id")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}
	var result sql.NullString
	if len(entry.Result) > 0 {
		result = sql.NullString{String: string(entry.Result), Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO unreported_completions (id, job_id, status, result, reason, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.JobID, string(entry.Status), result, entry.Reason,
		entry.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// List returns entries oldest first.
func (j *SQLiteJournal) List(ctx context.Context) ([]model.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, job_id, status, result, reason, recorded_at
		   FROM unreported_completions
		  ORDER BY recorded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var out []model.JournalEntry
	for rows.Next() {
		var (
			e          model.JournalEntry
			status     string
			result     sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.JobID, &status, &result, &e.Reason, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Status = model.JobStatus(status)
		if result.Valid {
			e.Result = []byte(result.String)
		}
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("journal entry %s recorded_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return out, nil
}

// Delete removes the entry. Deleting an absent id is not an error.
func (j *SQLiteJournal) Delete(ctx context.Context, id string) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM unreported_completions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}
	return nil
}
