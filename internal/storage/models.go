package storage

import (
	"errors"
	"time"

	"github.com/jeastham1993/zettel-system/internal/outbox"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Note is a single zettel. The embed_* columns are the outbox state for the
// embedding pipeline: they live on the note itself so processing state
// survives crashes and cascades with the note.
type Note struct {
	ID        string
	Title     string
	Content   string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time

	EmbedStatus    outbox.Status
	EmbedAttempts  int
	EmbedError     string
	EmbedModel     string
	EmbedUpdatedAt time.Time
}

// NoteLink is a URL extracted from a note's content, enriched asynchronously
// with the page title and description. The fetch_* columns are the outbox
// state for the enrichment pipeline.
type NoteLink struct {
	ID          string
	NoteID      string
	URL         string
	Title       string
	Description string
	SiteName    string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	FetchStatus   outbox.Status
	FetchAttempts int
	FetchError    string
}

// Generation is one content-generation run: a drafted blog or social post
// mined from the note graph. Its status columns are the outbox state for the
// generation pipeline; ScheduledAt gates when the poller releases the run.
type Generation struct {
	ID          string
	Kind        string // "blog" or "social"
	Topic       string
	VoiceID     string
	SeedNoteID  string
	Result      string
	ScheduledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Status    outbox.Status
	Attempts  int
	LastError string
}

// Voice is a named writing-voice configuration used by the generation
// pipeline to steer tone and style.
type Voice struct {
	ID          string
	Name        string
	Description string
	StylePrompt string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StuckItem is the operator-facing view of an item that needs attention:
// either failed with retries exhausted, or processing for longer than the
// grace window.
type StuckItem struct {
	Pipeline  string
	ID        string
	Status    outbox.Status
	Attempts  int
	LastError string
	UpdatedAt time.Time
}
