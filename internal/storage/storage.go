package storage

import (
	"context"
	"time"
)

// JobStatus is the recorded outcome of one evaluation attempt.
type JobStatus string

const (
	StatusSuccess JobStatus = "success"
	StatusFailed  JobStatus = "failed"
)

// Job is one completed evaluation attempt. Re-evaluation rounds of the same
// invocation are recorded as separate jobs with an increasing round number.
type Job struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ChannelID  string    `json:"channel_id"`
	Command    string    `json:"command"`
	Round      int       `json:"round"`
	ReturnCode *int      `json:"returncode"`
	Status     JobStatus `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// JobListOptions controls filtering and pagination for ListJobs.
type JobListOptions struct {
	UserID string
	Status JobStatus
	Limit  int
	Offset int
}

// Store is the persistence interface for job history and usage counters.
type Store interface {
	// RecordJob inserts a completed job. The ID field must be set by the caller.
	RecordJob(ctx context.Context, j *Job) error

	// GetJob returns a job by ID or ID prefix.
	GetJob(ctx context.Context, id string) (*Job, error)

	// ListJobs returns jobs ordered by finished_at descending.
	ListJobs(ctx context.Context, opts JobListOptions) ([]Job, error)

	// Incr bumps a named usage counter by one.
	Incr(ctx context.Context, name string) error

	// Counters returns all counter values keyed by name.
	Counters(ctx context.Context) (map[string]int64, error)

	// Close releases resources.
	Close() error
}
