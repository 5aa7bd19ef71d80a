package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeastham1993/zettel-system/internal/outbox"
	"github.com/jeastham1993/zettel-system/internal/retrieval"
	"github.com/jeastham1993/zettel-system/internal/storage"
)

// NoteStore is the subset of storage the embedding executor needs.
type NoteStore interface {
	GetNote(ctx context.Context, id string) (storage.Note, error)
	SetNoteEmbedModel(ctx context.Context, id, model string) error
}

// VectorWriter persists embedding vectors for a note.
type VectorWriter interface {
	ReplaceForNote(ctx context.Context, noteID string, records []retrieval.Record) error
	DeleteForNote(ctx context.Context, noteID string) error
}

// Executor embeds a note's content and stores the resulting vectors. It
// implements outbox.Executor; status transitions are handled by the worker.
type Executor struct {
	notes    NoteStore
	vectors  VectorWriter
	embedder *retrieval.Embedder
	logger   *slog.Logger
}

// NewExecutor creates an embedding executor.
func NewExecutor(notes NoteStore, vectors VectorWriter, embedder *retrieval.Embedder, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{notes: notes, vectors: vectors, embedder: embedder, logger: logger}
}

var _ outbox.Executor = (*Executor)(nil)

// Execute loads the note fresh, embeds its text, and replaces the stored
// vectors. The replace is atomic, so an interrupted run leaves the previous
// vectors intact and a re-run converges to the same end state.
func (e *Executor) Execute(ctx context.Context, id string) error {
	note, err := e.notes.GetNote(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Note deleted between enqueue and execution; nothing to do.
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading note %s: %w", id, err)
	}

	text := embeddingText(note)
	if text == "" {
		// Empty notes carry no signal. Clear any stale vectors and complete.
		if err := e.vectors.DeleteForNote(ctx, id); err != nil {
			return fmt.Errorf("clearing vectors for note %s: %w", id, err)
		}
		return e.notes.SetNoteEmbedModel(ctx, id, e.embedder.Model())
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding note %s: %w", id, err)
	}

	record := retrieval.Record{
		ID:        uuid.New().String(),
		NoteID:    id,
		TextChunk: retrieval.Truncate(text, 500),
		Embedding: vec,
		Model:     e.embedder.Model(),
		CreatedAt: time.Now().UTC(),
	}
	if err := e.vectors.ReplaceForNote(ctx, id, []retrieval.Record{record}); err != nil {
		return fmt.Errorf("storing vectors for note %s: %w", id, err)
	}
	if err := e.notes.SetNoteEmbedModel(ctx, id, e.embedder.Model()); err != nil {
		return fmt.Errorf("recording embed model for note %s: %w", id, err)
	}

	e.logger.Debug("note embedded", "note_id", id, "model", e.embedder.Model(), "dims", len(vec))
	return nil
}

// embeddingText joins the title and content; the title usually carries the
// densest similarity signal for short zettels.
func embeddingText(note storage.Note) string {
	return strings.TrimSpace(strings.TrimSpace(note.Title) + "\n\n" + strings.TrimSpace(note.Content))
}
