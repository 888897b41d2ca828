// Package memory records notices in-process for local development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmfell/scholarscrape/internal/queue"
)

// Queue implements queue.Provider by keeping notices in memory.
type Queue struct {
	mu      sync.Mutex
	notices []queue.Notice
	closed  bool
}

// NewQueue constructs an empty in-memory notice queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Publish records the notice, honoring context cancellation.
func (q *Queue) Publish(ctx context.Context, n queue.Notice) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish canceled: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue closed")
	}
	q.notices = append(q.notices, n)
	return nil
}

// Close marks the queue closed; later publishes fail.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Notices returns a copy of everything published so far.
func (q *Queue) Notices() []queue.Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Notice(nil), q.notices...)
}
