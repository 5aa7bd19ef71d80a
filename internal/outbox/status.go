package outbox

import "strings"

// Status represents the processing lifecycle of an outbox item.
type Status string

const (
	// StatusPending marks an item eligible for pickup.
	StatusPending Status = "pending"
	// StatusProcessing marks an item claimed by a worker. Never a resting
	// state: anything found processing after the grace window is treated as
	// abandoned and reset to pending by the poller.
	StatusProcessing Status = "processing"
	// StatusCompleted is terminal success.
	StatusCompleted Status = "completed"
	// StatusFailed is terminal once the retry ceiling is reached; below the
	// ceiling the poller moves the item back to pending.
	StatusFailed Status = "failed"
	// StatusStale marks an item whose result was invalidated upstream (for
	// example an embedding model swap) and needs reprocessing.
	StatusStale Status = "stale"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusStale,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// transitions is the closed set of legal status moves. Anything not listed
// here is rejected, so an item can never move e.g. completed -> processing.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusStale},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusPending},
	StatusFailed:     {StatusPending, StatusStale},
	StatusCompleted:  {StatusStale},
	StatusStale:      {StatusPending},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a stored string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is a resting state that the poller will
// not pick up on its own. Failed is terminal only once retries are exhausted;
// that check lives in the store, not here.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
