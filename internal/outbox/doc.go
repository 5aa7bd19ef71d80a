// Package outbox implements the durable background-processing pattern shared
// by the embedding, enrichment, and generation pipelines: a persisted status
// column on the owning entity, an in-memory notification queue for low-latency
// wake-up, and a poll-and-recover loop that re-queues stuck or retryable work.
//
// The database row is the single source of truth. The queue is best-effort:
// ids may be dropped when it is saturated and are lost on restart, and the
// poller picks them back up from the persisted status. Every transition is a
// check-then-act update against the stored status, so queue-driven and
// poll-driven invocations of the same id cannot double-process an item.
package outbox
