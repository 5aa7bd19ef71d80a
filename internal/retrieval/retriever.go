package retrieval

import (
	"context"
	"fmt"
)

// Retriever combines embedding and vector search to find relevant notes.
type Retriever struct {
	embedder *Embedder
	store    *SQLiteStore
}

// NewRetriever creates a Retriever backed by the given Embedder and store.
func NewRetriever(embedder *Embedder, store *SQLiteStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Search embeds the query and returns the top-K most similar note chunks.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]ScoredRecord, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.store.Search(ctx, vec, topK, "")
}

// Related returns the top-K chunks most similar to the given note, excluding
// the note's own chunks. Notes that have not been embedded yet return an
// empty result rather than an error.
func (r *Retriever) Related(ctx context.Context, noteID string, topK int) ([]ScoredRecord, error) {
	own, err := r.store.VectorsForNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("loading vectors for note %s: %w", noteID, err)
	}
	if len(own) == 0 {
		return nil, nil
	}

	// The first chunk carries the note's title and opening, which is the
	// strongest similarity signal for a short note.
	return r.store.Search(ctx, own[0].Embedding, topK, noteID)
}
