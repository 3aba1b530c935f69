package session

import (
	"sync"
	"time"
)

// Registry tracks which users have an evaluation in flight. It is an advisory
// lock, not a queue: a second submission from the same user is rejected, never
// held. Safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]time.Time)}
}

// TryAcquire records a job for the user if none is in flight. Returns whether
// the job was recorded. The stored start time is diagnostic only.
func (r *Registry) TryAcquire(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[userID]; exists {
		return false
	}
	r.jobs[userID] = time.Now()
	return true
}

// Release removes the user's job entry. Releasing an absent entry is a no-op.
func (r *Registry) Release(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, userID)
}

// Active returns the number of jobs currently in flight.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
