package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// FailureRecord is the failed-login state kept for one username.
type FailureRecord struct {
	Count       int
	LastFailure time.Time
}

// FailureTracker stores failed-login counters keyed by username. Records
// older than the lockout window may be dropped by the implementation.
type FailureTracker interface {
	Get(ctx context.Context, username string) (FailureRecord, bool, error)
	Record(ctx context.Context, username string, at time.Time) (FailureRecord, error)
	Clear(ctx context.Context, username string) error
}

const memoryTrackerSize = 10000

// MemoryTracker keeps counters in process memory. Entries expire one window
// after their last failure.
type MemoryTracker struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, FailureRecord]
}

func NewMemoryTracker(window time.Duration) *MemoryTracker {
	return &MemoryTracker{
		entries: expirable.NewLRU[string, FailureRecord](memoryTrackerSize, nil, window),
	}
}

func (t *MemoryTracker) Get(_ context.Context, username string) (FailureRecord, bool, error) {
	rec, ok := t.entries.Get(username)
	return rec, ok, nil
}

func (t *MemoryTracker) Record(_ context.Context, username string, at time.Time) (FailureRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, _ := t.entries.Get(username)
	rec.Count++
	rec.LastFailure = at
	t.entries.Add(username, rec)
	return rec, nil
}

func (t *MemoryTracker) Clear(_ context.Context, username string) error {
	t.entries.Remove(username)
	return nil
}
