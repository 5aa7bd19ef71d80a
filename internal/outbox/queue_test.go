package outbox

import (
	"context"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4)
	for _, id := range []string{"a", "b", "c"} {
		if !q.Enqueue(id) {
			t.Fatalf("Enqueue(%q) dropped", id)
		}
	}

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Dequeue(ctx)
		if !ok {
			t.Fatalf("Dequeue returned ok=false, want %q", want)
		}
		if got != want {
			t.Errorf("Dequeue = %q, want %q", got, want)
		}
	}
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(2)
	if !q.Enqueue("a") || !q.Enqueue("b") {
		t.Fatal("enqueue into empty queue dropped")
	}
	if q.Enqueue("c") {
		t.Error("Enqueue on a full queue returned true, want drop")
	}
	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}
}

func TestQueue_DequeueUnblocksOnCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Error("Dequeue returned ok=true after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after cancellation")
	}
}

func TestQueue_CloseDrainsBufferedIDs(t *testing.T) {
	q := NewQueue(2)
	q.Enqueue("a")
	q.Close()

	if q.Enqueue("b") {
		t.Error("Enqueue after Close returned true")
	}

	ctx := context.Background()
	if id, ok := q.Dequeue(ctx); !ok || id != "a" {
		t.Errorf("Dequeue after Close = (%q, %v), want (a, true)", id, ok)
	}
	if _, ok := q.Dequeue(ctx); ok {
		t.Error("Dequeue on drained closed queue returned ok=true")
	}
}

func TestQueue_CloseTwiceDoesNotPanic(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	q.Close()
}
