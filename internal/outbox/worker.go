package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Store abstracts the persisted outbox state for one pipeline. Implementations
// live in internal/storage, one per owning table.
type Store interface {
	// Claim atomically moves an item from pending to processing. Returns
	// false without error when the item is no longer pending (already
	// claimed, completed, or deleted) — the de-duplication boundary between
	// queue-driven and poll-driven invocation of the same id.
	Claim(ctx context.Context, id string) (bool, error)

	// MarkCompleted flips a processing item to completed. Treats a
	// concurrently deleted item as a no-op.
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed records the error text, increments the attempt counter, and
	// flips the item to failed. When permanent is true the attempt counter is
	// raised to the retry ceiling so the poller never re-selects the item.
	// Treats a concurrently deleted item as a no-op.
	MarkFailed(ctx context.Context, id string, msg string, permanent bool) error

	// RequeueStuck resets items left processing for longer than olderThan
	// back to pending. Crash recovery: it is impossible to know whether the
	// previous attempt partially succeeded, so the item simply runs again.
	RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error)

	// RequeueRetryable moves failed items below the retry ceiling and stale
	// items back to pending.
	RequeueRetryable(ctx context.Context) (int64, error)

	// ListRunnable returns ids of pending items, oldest first, capped to limit.
	ListRunnable(ctx context.Context, limit int) ([]string, error)
}

// Executor performs the single external side-effecting call for one item.
// It must load the item's payload fresh from the store, since content may
// have changed since the id was enqueued.
type Executor interface {
	Execute(ctx context.Context, id string) error
}

// Worker consumes ids from a Queue and runs them through the claim ->
// execute -> mark cycle. Each item is processed inside its own failure
// boundary: an error (or panic) in one item is recorded on that item and the
// loop moves on.
type Worker struct {
	name    string
	store   Store
	exec    Executor
	queue   *Queue
	timeout time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker. timeout bounds each Execute call independently
// of the run context, so shutdown lets the in-flight call finish or time out.
// Pass 0 to inherit the caller's context deadline only.
func NewWorker(name string, store Store, exec Executor, queue *Queue, timeout time.Duration) *Worker {
	return &Worker{
		name:    name,
		store:   store,
		exec:    exec,
		queue:   queue,
		timeout: timeout,
		logger:  slog.Default().With("worker", name),
	}
}

// Run consumes the queue until ctx is cancelled or the queue is closed.
// An in-flight item finishes (or times out) before Run returns.
func (w *Worker) Run(ctx context.Context) {
	for {
		id, ok := w.queue.Dequeue(ctx)
		if !ok {
			return
		}
		w.Process(ctx, id)
	}
}

// Process runs a single item through claim, execute, and the terminal status
// write. Status writes use a context detached from ctx's cancellation so that
// shutdown mid-item never leaves a half-recorded transition.
func (w *Worker) Process(ctx context.Context, id string) {
	claimed, err := w.store.Claim(ctx, id)
	if err != nil {
		w.logger.Error("claim failed", "id", id, "error", err)
		return
	}
	if !claimed {
		w.logger.Debug("item not pending, skipping", "id", id)
		return
	}

	execErr := w.execute(ctx, id)

	markCtx := context.WithoutCancel(ctx)
	if execErr != nil {
		if ctx.Err() != nil && errors.Is(execErr, context.Canceled) {
			// Shutdown interrupted the call, the external service did not
			// fail. Leave the item processing; stuck recovery requeues it
			// without recording an attempt.
			w.logger.Info("item interrupted by shutdown, left for recovery", "id", id)
			return
		}
		permanent := IsPermanent(execErr)
		w.logger.Warn("item failed", "id", id, "permanent", permanent, "error", execErr)
		if err := w.store.MarkFailed(markCtx, id, execErr.Error(), permanent); err != nil {
			w.logger.Error("recording failure failed", "id", id, "error", err)
		}
		return
	}

	if err := w.store.MarkCompleted(markCtx, id); err != nil {
		w.logger.Error("recording completion failed", "id", id, "error", err)
	}
}

func (w *Worker) execute(ctx context.Context, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	if w.timeout > 0 {
		// Detached from ctx cancellation: a claimed item runs to completion
		// or to its own timeout even when shutdown begins mid-call.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
		defer cancel()
	}
	return w.exec.Execute(ctx, id)
}
