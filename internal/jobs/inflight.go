// Package jobs tracks in-flight scrape work keyed by target identifier,
// guaranteeing at most one concurrent scrape per target.
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// staleAfter is the ceiling on how long an in-flight entry may linger.
// A crashed or wedged job past this age is swept so the target isn't
// blocked forever.
const staleAfter = 5 * time.Minute

// Job is one in-flight unit of work. The owner completes it exactly once;
// any number of followers wait on it.
type Job[T any] struct {
	done      chan struct{}
	startedAt time.Time

	val T
	err error
}

// Wait blocks until the job completes or ctx is done.
func (j *Job[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-j.done:
		return j.val, j.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Tracker is a process-wide registry of in-flight jobs.
type Tracker[T any] struct {
	mu   sync.Mutex
	jobs map[string]*Job[T]
}

// NewTracker creates an empty Tracker.
func NewTracker[T any]() *Tracker[T] {
	return &Tracker[T]{jobs: make(map[string]*Job[T])}
}

// Begin admits work for key. When owner is true the caller must run the work
// and call Complete; when false, another caller owns the work and the
// returned job should be waited on. Stale entries are swept before
// admission.
func (t *Tracker[T]) Begin(key string) (job *Job[T], owner bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked()

	if existing, ok := t.jobs[key]; ok {
		return existing, false
	}

	j := &Job[T]{
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	t.jobs[key] = j
	return j, true
}

// Complete records the job's outcome, releases all waiters, and evicts the
// entry. Safe to call once per owned job.
func (t *Tracker[T]) Complete(key string, job *Job[T], val T, err error) {
	job.val = val
	job.err = err
	close(job.done)

	t.mu.Lock()
	if t.jobs[key] == job {
		delete(t.jobs, key)
	}
	t.mu.Unlock()
}

// InFlight reports whether key currently has an owner.
func (t *Tracker[T]) InFlight(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.jobs[key]
	return ok
}

func (t *Tracker[T]) sweepLocked() {
	now := time.Now()
	for key, j := range t.jobs {
		if now.Sub(j.startedAt) > staleAfter {
			zap.L().Warn("jobs: sweeping stale in-flight entry",
				zap.String("key", key),
				zap.Duration("age", now.Sub(j.startedAt)),
			)
			delete(t.jobs, key)
		}
	}
}
