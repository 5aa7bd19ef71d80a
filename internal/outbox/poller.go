package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Poller is the ground-truth source of "what needs doing", immune to process
// restarts and dropped queue notifications. On a fixed interval it resets
// stuck processing items, re-queues retryable failures and stale items, and
// pushes runnable ids onto the notification queue oldest-first.
type Poller struct {
	name     string
	store    Store
	queue    *Queue
	interval time.Duration
	grace    time.Duration
	batch    int
	logger   *slog.Logger
}

// NewPoller creates a Poller. interval is the scan period, grace the window
// after which a processing item counts as stuck, batch the maximum number of
// ids pushed per pass.
func NewPoller(name string, store Store, queue *Queue, interval, grace time.Duration, batch int) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	return &Poller{
		name:     name,
		store:    store,
		queue:    queue,
		interval: interval,
		grace:    grace,
		batch:    batch,
		logger:   slog.Default().With("poller", name),
	}
}

// Run scans until ctx is cancelled. The first pass happens immediately so
// items abandoned by a previous process are recovered at startup.
func (p *Poller) Run(ctx context.Context) {
	if err := p.Tick(ctx); err != nil {
		p.logger.Error("poll pass failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Error("poll pass failed", "error", err)
			}
		}
	}
}

// Tick runs a single poll pass.
func (p *Poller) Tick(ctx context.Context) error {
	stuck, err := p.store.RequeueStuck(ctx, p.grace)
	if err != nil {
		return fmt.Errorf("requeueing stuck items: %w", err)
	}
	if stuck > 0 {
		p.logger.Warn("reset stuck processing items", "count", stuck)
	}

	retried, err := p.store.RequeueRetryable(ctx)
	if err != nil {
		return fmt.Errorf("requeueing retryable items: %w", err)
	}
	if retried > 0 {
		p.logger.Info("requeued retryable items", "count", retried)
	}

	ids, err := p.store.ListRunnable(ctx, p.batch)
	if err != nil {
		return fmt.Errorf("listing runnable items: %w", err)
	}
	for _, id := range ids {
		if !p.queue.Enqueue(id) {
			// Queue saturated or closed; the rest will surface next pass.
			p.logger.Debug("queue full, deferring remaining ids", "deferred", len(ids))
			break
		}
	}
	return nil
}
