package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbedClient generates embeddings via an external model.
type EmbedClient interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Embedder wraps an EmbedClient, applying the model name and the outbound
// payload budget. Text longer than maxChars is truncated before it leaves the
// process, respecting the provider's input limit.
type Embedder struct {
	client   EmbedClient
	model    string
	maxChars int
}

const defaultMaxChars = 4000

// NewEmbedder creates an Embedder using the given client and model name.
// If maxChars is <= 0, it defaults to 4000.
func NewEmbedder(client EmbedClient, model string, maxChars int) *Embedder {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Embedder{client: client, model: model, maxChars: maxChars}
}

// Model returns the embedding model name in use.
func (e *Embedder) Model() string {
	return e.model
}

// Embed returns the embedding vector for a single text, truncated to the
// configured character budget.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, Truncate(text, e.maxChars))
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the model server.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.client.Embed(gCtx, e.model, Truncate(text, e.maxChars))
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Truncate bounds text to at most max characters, cutting on a rune boundary.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
