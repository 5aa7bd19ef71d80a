package outbox

import (
	"context"
	"sync"
)

const defaultQueueCapacity = 256

// Queue is a process-local notification channel carrying entity ids. It gives
// workers near-zero-latency wake-up on new work; it is not a reliability
// mechanism. Enqueue never blocks and silently drops ids when the buffer is
// full, because the poller re-discovers anything dropped from the persisted
// status on its next pass.
type Queue struct {
	ch chan string

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a Queue with the given buffer capacity.
// If capacity is <= 0, it defaults to 256.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &Queue{ch: make(chan string, capacity)}
}

// Enqueue offers an id to the queue without blocking. Returns false when the
// id was dropped because the queue is full or closed.
func (q *Queue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- id:
		return true
	default:
		return false
	}
}

// Dequeue blocks until an id is available, the queue is closed and drained,
// or ctx is cancelled. The second return value is false when no id was
// delivered, signalling the caller to stop.
func (q *Queue) Dequeue(ctx context.Context) (string, bool) {
	select {
	case id, ok := <-q.ch:
		return id, ok
	case <-ctx.Done():
		return "", false
	}
}

// Close stops the queue. Pending ids remain receivable; blocked Dequeue
// callers unblock with ok=false once the buffer drains. Safe to call more
// than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Len returns the number of ids currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}
