package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jeastham1993/zettel-system/internal/outbox"
)

// outboxColumns maps the generic outbox contract onto one owning table. All
// three pipelines share the same SQL shape; only the table and column names
// differ. The touch column records the time of the last status change and
// drives stuck-item detection.
type outboxColumns struct {
	pipeline string
	table    string
	status   string
	attempts string
	errText  string
	touch    string
	order    string
	gate     string // optional: items are runnable only once gate <= now
}

// OutboxStore implements outbox.Store for one pipeline's owning table.
type OutboxStore struct {
	db          *sql.DB
	cols        outboxColumns
	maxAttempts int
}

var _ outbox.Store = (*OutboxStore)(nil)

// EmbeddingOutbox returns the outbox view over the notes table's embed_*
// columns.
func (s *Store) EmbeddingOutbox(maxAttempts int) *OutboxStore {
	return s.newOutbox(outboxColumns{
		pipeline: "embedding",
		table:    "notes",
		status:   "embed_status",
		attempts: "embed_attempts",
		errText:  "embed_error",
		touch:    "embed_updated_at",
		order:    "created_at",
	}, maxAttempts)
}

// EnrichmentOutbox returns the outbox view over the note_links table.
func (s *Store) EnrichmentOutbox(maxAttempts int) *OutboxStore {
	return s.newOutbox(outboxColumns{
		pipeline: "enrichment",
		table:    "note_links",
		status:   "fetch_status",
		attempts: "fetch_attempts",
		errText:  "fetch_error",
		touch:    "updated_at",
		order:    "created_at",
	}, maxAttempts)
}

// GenerationOutbox returns the outbox view over the generations table.
// Scheduled runs are held back until their scheduled_at time passes.
func (s *Store) GenerationOutbox(maxAttempts int) *OutboxStore {
	return s.newOutbox(outboxColumns{
		pipeline: "generation",
		table:    "generations",
		status:   "status",
		attempts: "attempts",
		errText:  "last_error",
		touch:    "updated_at",
		order:    "scheduled_at",
		gate:     "scheduled_at",
	}, maxAttempts)
}

func (s *Store) newOutbox(cols outboxColumns, maxAttempts int) *OutboxStore {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &OutboxStore{db: s.db, cols: cols, maxAttempts: maxAttempts}
}

// Pipeline returns the pipeline name this store serves.
func (o *OutboxStore) Pipeline() string {
	return o.cols.pipeline
}

// Claim atomically moves an item from pending to processing. The WHERE clause
// on the current status is the optimistic-concurrency check: only one of a
// queue-driven and a poll-driven invocation can win.
func (o *OutboxStore) Claim(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := o.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = 'processing', %s = ? WHERE id = ? AND %s = 'pending'`,
		o.cols.table, o.cols.status, o.cols.touch, o.cols.status,
	), now, id)
	if err != nil {
		return false, fmt.Errorf("claiming %s item: %w", o.cols.pipeline, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// MarkCompleted flips a processing item to completed and clears its error.
// Zero rows affected means the item was deleted or transitioned elsewhere;
// both are treated as a no-op.
func (o *OutboxStore) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := o.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = 'completed', %s = '', %s = ? WHERE id = ? AND %s = 'processing'`,
		o.cols.table, o.cols.status, o.cols.errText, o.cols.touch, o.cols.status,
	), now, id)
	if err != nil {
		return fmt.Errorf("completing %s item: %w", o.cols.pipeline, err)
	}
	return nil
}

// MarkFailed records the error text, increments the attempt counter, and
// flips the item to failed in a single transaction. Permanent failures jump
// the counter to the retry ceiling so the poller never re-selects them.
// A concurrently deleted item is a no-op.
func (o *OutboxStore) MarkFailed(ctx context.Context, id string, msg string, permanent bool) error {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts int
	err = tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE id = ?`, o.cols.attempts, o.cols.table,
	), id).Scan(&attempts)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s attempts: %w", o.cols.pipeline, err)
	}

	attempts++
	if permanent && attempts < o.maxAttempts {
		attempts = o.maxAttempts
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = 'failed', %s = ?, %s = ?, %s = ? WHERE id = ? AND %s = 'processing'`,
		o.cols.table, o.cols.status, o.cols.attempts, o.cols.errText, o.cols.touch, o.cols.status,
	), attempts, msg, now, id); err != nil {
		return fmt.Errorf("failing %s item: %w", o.cols.pipeline, err)
	}

	return tx.Commit()
}

// RequeueStuck resets items left processing for longer than olderThan back to
// pending. Processing is never a resting state: a previous worker either
// crashed or lost the item, and it is impossible to know whether the attempt
// partially succeeded, so it simply runs again.
func (o *OutboxStore) RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan).Format(time.RFC3339)
	res, err := o.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = 'pending', %s = ? WHERE %s = 'processing' AND %s < ?`,
		o.cols.table, o.cols.status, o.cols.touch, o.cols.status, o.cols.touch,
	), now.Format(time.RFC3339), cutoff)
	if err != nil {
		return 0, fmt.Errorf("requeueing stuck %s items: %w", o.cols.pipeline, err)
	}
	return res.RowsAffected()
}

// RequeueRetryable moves failed items below the retry ceiling back to
// pending, and stale items back to pending with a fresh attempt budget.
func (o *OutboxStore) RequeueRetryable(ctx context.Context) (int64, error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning requeue transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	failedRes, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = 'pending', %s = ? WHERE %s = 'failed' AND %s < ?`,
		o.cols.table, o.cols.status, o.cols.touch, o.cols.status, o.cols.attempts,
	), now, o.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("requeueing failed %s items: %w", o.cols.pipeline, err)
	}

	staleRes, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = 'pending', %s = 0, %s = '', %s = ? WHERE %s = 'stale'`,
		o.cols.table, o.cols.status, o.cols.attempts, o.cols.errText, o.cols.touch, o.cols.status,
	), now)
	if err != nil {
		return 0, fmt.Errorf("requeueing stale %s items: %w", o.cols.pipeline, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	failed, err := failedRes.RowsAffected()
	if err != nil {
		return 0, err
	}
	stale, err := staleRes.RowsAffected()
	if err != nil {
		return 0, err
	}
	return failed + stale, nil
}

// ListRunnable returns ids of pending items, oldest first. Gated tables
// (scheduled generations) only release items whose time has come.
func (o *OutboxStore) ListRunnable(ctx context.Context, limit int) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT id FROM %s WHERE %s = 'pending'`, o.cols.table, o.cols.status,
	)
	args := []any{}
	if o.cols.gate != "" {
		query += fmt.Sprintf(` AND %s <= ?`, o.cols.gate)
		args = append(args, time.Now().UTC().Format(time.RFC3339))
	}
	query += fmt.Sprintf(` ORDER BY %s ASC LIMIT ?`, o.cols.order)
	args = append(args, limit)

	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runnable %s items: %w", o.cols.pipeline, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStuck returns the operator-facing view of items needing attention:
// failed with retries exhausted, or processing for longer than grace.
func (o *OutboxStore) ListStuck(ctx context.Context, grace time.Duration) ([]StuckItem, error) {
	cutoff := time.Now().UTC().Add(-grace).Format(time.RFC3339)
	rows, err := o.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, %s, %s, %s, %s FROM %s
		WHERE (%s = 'failed' AND %s >= ?) OR (%s = 'processing' AND %s < ?)
		ORDER BY %s ASC`,
		o.cols.status, o.cols.attempts, o.cols.errText, o.cols.touch, o.cols.table,
		o.cols.status, o.cols.attempts, o.cols.status, o.cols.touch,
		o.cols.touch,
	), o.maxAttempts, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing stuck %s items: %w", o.cols.pipeline, err)
	}
	defer rows.Close()

	var items []StuckItem
	for rows.Next() {
		var item StuckItem
		var status, touched string
		if err := rows.Scan(&item.ID, &status, &item.Attempts, &item.LastError, &touched); err != nil {
			return nil, err
		}
		parsed, ok := outbox.ParseStatus(status)
		if !ok {
			return nil, fmt.Errorf("%s item %s has unknown status %q", o.cols.pipeline, item.ID, status)
		}
		item.Status = parsed
		if item.UpdatedAt, err = time.Parse(time.RFC3339, touched); err != nil {
			return nil, fmt.Errorf("parsing %s timestamp: %w", o.cols.touch, err)
		}
		item.Pipeline = o.cols.pipeline
		items = append(items, item)
	}
	return items, rows.Err()
}
