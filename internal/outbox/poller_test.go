package outbox

import (
	"context"
	"sync"
	"testing"
	"time"
)

// orderedStore returns runnable ids in a fixed order and counts recovery calls.
type orderedStore struct {
	fakeStore
	runnable     []string
	stuckReset   int64
	requeued     int64
	mu2          sync.Mutex
	stuckCalls   int
	requeueCalls int
}

func (s *orderedStore) RequeueStuck(_ context.Context, _ time.Duration) (int64, error) {
	s.mu2.Lock()
	defer s.mu2.Unlock()
	s.stuckCalls++
	return s.stuckReset, nil
}

func (s *orderedStore) RequeueRetryable(_ context.Context) (int64, error) {
	s.mu2.Lock()
	defer s.mu2.Unlock()
	s.requeueCalls++
	return s.requeued, nil
}

func (s *orderedStore) ListRunnable(_ context.Context, limit int) ([]string, error) {
	if len(s.runnable) > limit {
		return s.runnable[:limit], nil
	}
	return s.runnable, nil
}

func TestPoller_TickEnqueuesOldestFirst(t *testing.T) {
	store := &orderedStore{runnable: []string{"a", "b", "c"}}
	q := NewQueue(8)
	p := NewPoller("test", store, q, time.Minute, time.Minute, 10)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Dequeue(ctx)
		if !ok || got != want {
			t.Fatalf("Dequeue = (%q, %v), want (%q, true)", got, ok, want)
		}
	}
}

func TestPoller_TickRunsRecoveryBeforeListing(t *testing.T) {
	store := &orderedStore{stuckReset: 2, requeued: 1}
	q := NewQueue(8)
	p := NewPoller("test", store, q, time.Minute, time.Minute, 10)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	store.mu2.Lock()
	defer store.mu2.Unlock()
	if store.stuckCalls != 1 {
		t.Errorf("RequeueStuck called %d times, want 1", store.stuckCalls)
	}
	if store.requeueCalls != 1 {
		t.Errorf("RequeueRetryable called %d times, want 1", store.requeueCalls)
	}
}

func TestPoller_TickStopsAtSaturatedQueue(t *testing.T) {
	store := &orderedStore{runnable: []string{"a", "b", "c", "d"}}
	q := NewQueue(2)
	p := NewPoller("test", store, q, time.Minute, time.Minute, 10)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("queue length = %d, want 2 (rest deferred to next pass)", q.Len())
	}
}

func TestPoller_RunScansImmediately(t *testing.T) {
	store := &orderedStore{runnable: []string{"a"}}
	q := NewQueue(2)
	// Long interval: only the immediate startup pass can deliver the id.
	p := NewPoller("test", store, q, time.Hour, time.Minute, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	deadline, stop := context.WithTimeout(ctx, time.Second)
	defer stop()
	id, ok := q.Dequeue(deadline)
	if !ok || id != "a" {
		t.Fatalf("Dequeue = (%q, %v), want (a, true) from startup pass", id, ok)
	}
}
