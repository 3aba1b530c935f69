package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doublevcodes/bot/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RecordJob(ctx context.Context, j *storage.Job) error {
	if j.FinishedAt.IsZero() {
		j.FinishedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, user_id, channel_id, command, round, returncode, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.ChannelID, j.Command, j.Round, j.ReturnCode, j.Status,
		j.StartedAt.UTC().Format(time.RFC3339), j.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	// Try exact match first, then prefix match
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, channel_id, command, round, returncode, status, started_at, finished_at
		FROM jobs WHERE id = ?`, id)
	if j, err := scanJob(row); err == nil {
		return j, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, channel_id, command, round, returncode, status, started_at, finished_at
		FROM jobs WHERE id LIKE ? || '%'`, id)
	if err != nil {
		return nil, fmt.Errorf("querying job: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, j)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("job not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous job prefix %q matches %d jobs", id, len(matches))
	}
}

func (s *SQLiteStore) ListJobs(ctx context.Context, opts storage.JobListOptions) ([]storage.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, user_id, channel_id, command, round, returncode, status, started_at, finished_at FROM jobs`
	var args []any
	var where []string

	if opts.UserID != "" {
		where = append(where, `user_id = ?`)
		args = append(args, opts.UserID)
	}
	if opts.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(opts.Status))
	}
	for i, cond := range where {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}

	query += ` ORDER BY finished_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []storage.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *SQLiteStore) Incr(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1`, name)
	if err != nil {
		return fmt.Errorf("incrementing counter %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) Counters(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM counters`)
	if err != nil {
		return nil, fmt.Errorf("reading counters: %w", err)
	}
	defer rows.Close()

	counters := make(map[string]int64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		counters[name] = value
	}
	return counters, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*storage.Job, error) {
	var j storage.Job
	var returncode sql.NullInt64
	var startedAt, finishedAt string
	err := sc.Scan(&j.ID, &j.UserID, &j.ChannelID, &j.Command, &j.Round,
		&returncode, &j.Status, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if returncode.Valid {
		rc := int(returncode.Int64)
		j.ReturnCode = &rc
	}
	j.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	j.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
	return &j, nil
}
