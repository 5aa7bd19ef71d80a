package notes

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jeastham1993/zettel-system/internal/outbox"
	"github.com/jeastham1993/zettel-system/internal/retrieval"
	"github.com/jeastham1993/zettel-system/internal/storage"
)

// urlPattern matches bare http(s) URLs inside note content. Trailing sentence
// punctuation is stripped afterwards in extractURLs.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)

// Service orchestrates note CRUD around the two write-side pipelines: saving
// a note persists its outbox state in the same database transaction scope,
// then nudges the relevant queue so workers pick the item up without waiting
// for the next poll.
type Service struct {
	store       *storage.Store
	vectors     *retrieval.SQLiteStore
	retriever   *retrieval.Retriever
	embedQueue  *outbox.Queue
	enrichQueue *outbox.Queue
	logger      *slog.Logger
}

// NewService creates a notes service.
func NewService(store *storage.Store, vectors *retrieval.SQLiteStore, retriever *retrieval.Retriever, embedQueue, enrichQueue *outbox.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		vectors:     vectors,
		retriever:   retriever,
		embedQueue:  embedQueue,
		enrichQueue: enrichQueue,
		logger:      logger,
	}
}

// Create persists a new note and wakes the embedding and enrichment pipelines.
func (s *Service) Create(ctx context.Context, title, content string, tags []string) (storage.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return storage.Note{}, fmt.Errorf("title is required")
	}

	note := storage.Note{
		ID:      uuid.New().String(),
		Title:   title,
		Content: content,
		Tags:    normalizeTags(tags),
	}
	if err := s.store.SaveNote(ctx, note); err != nil {
		return storage.Note{}, fmt.Errorf("saving note: %w", err)
	}

	if err := s.syncLinks(ctx, note.ID, content); err != nil {
		return storage.Note{}, err
	}
	s.embedQueue.Enqueue(note.ID)

	return s.store.GetNote(ctx, note.ID)
}

// Update replaces a note's title, content, and tags. The content may have
// changed, so the note is re-queued for embedding and its links reconciled.
func (s *Service) Update(ctx context.Context, id, title, content string, tags []string) (storage.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return storage.Note{}, fmt.Errorf("title is required")
	}

	note := storage.Note{ID: id, Title: title, Content: content, Tags: normalizeTags(tags)}
	if err := s.store.UpdateNote(ctx, note); err != nil {
		return storage.Note{}, err
	}

	if err := s.syncLinks(ctx, id, content); err != nil {
		return storage.Note{}, err
	}
	s.embedQueue.Enqueue(id)

	return s.store.GetNote(ctx, id)
}

// syncLinks reconciles the stored links against the URLs in the content, then
// nudges the enrichment queue for any that still need fetching.
func (s *Service) syncLinks(ctx context.Context, noteID, content string) error {
	if err := s.store.ReplaceNoteLinks(ctx, noteID, extractURLs(content)); err != nil {
		return fmt.Errorf("syncing links for note %s: %w", noteID, err)
	}

	links, err := s.store.ListLinksForNote(ctx, noteID)
	if err != nil {
		return fmt.Errorf("listing links for note %s: %w", noteID, err)
	}
	for _, l := range links {
		if l.FetchStatus == outbox.StatusPending {
			s.enrichQueue.Enqueue(l.ID)
		}
	}
	return nil
}

// Get returns a note with its tags.
func (s *Service) Get(ctx context.Context, id string) (storage.Note, error) {
	return s.store.GetNote(ctx, id)
}

// List returns notes, most recently updated first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]storage.Note, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListNotes(ctx, limit, offset)
}

// Delete removes a note. Tag joins, links, and vectors cascade in the schema.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteNote(ctx, id)
}

// Links returns the enriched link previews for a note.
func (s *Service) Links(ctx context.Context, noteID string) ([]storage.NoteLink, error) {
	return s.store.ListLinksForNote(ctx, noteID)
}

// Tags returns tag names matching the given prefix, for autocomplete.
func (s *Service) Tags(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.TagsByPrefix(ctx, prefix, limit)
}

// SearchText performs substring search over titles and content.
func (s *Service) SearchText(ctx context.Context, query string, limit int) ([]storage.Note, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.SearchNotesText(ctx, query, limit)
}

// ScoredNote is a semantic search hit.
type ScoredNote struct {
	Note  storage.Note
	Score float32
}

// SearchSemantic embeds the query and returns the closest notes by cosine
// similarity, best first.
func (s *Service) SearchSemantic(ctx context.Context, query string, limit int) ([]ScoredNote, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	hits, err := s.retriever.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return s.resolveHits(ctx, hits)
}

// Related returns the notes most similar to the given note, best first.
func (s *Service) Related(ctx context.Context, noteID string, limit int) ([]ScoredNote, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	hits, err := s.retriever.Related(ctx, noteID, limit)
	if err != nil {
		return nil, fmt.Errorf("related notes: %w", err)
	}
	return s.resolveHits(ctx, hits)
}

// resolveHits maps scored chunks back to their notes, keeping the best score
// per note. Chunks whose note has since been deleted are skipped.
func (s *Service) resolveHits(ctx context.Context, hits []retrieval.ScoredRecord) ([]ScoredNote, error) {
	var out []ScoredNote
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		if _, ok := seen[hit.NoteID]; ok {
			continue
		}
		seen[hit.NoteID] = struct{}{}

		note, err := s.store.GetNote(ctx, hit.NoteID)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading note %s: %w", hit.NoteID, err)
		}
		out = append(out, ScoredNote{Note: note, Score: hit.Score})
	}
	return out, nil
}

// ReembedAll flags every note for re-embedding. The poller releases stale
// notes back to pending with a fresh attempt budget, so the rebuild proceeds
// at the pipeline's own pace.
func (s *Service) ReembedAll(ctx context.Context) (int64, error) {
	n, err := s.store.MarkAllNotesStale(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("flagged notes for re-embedding", "count", n)
	return n, nil
}

// Reembed resets a single note's embedding state and wakes the pipeline.
func (s *Service) Reembed(ctx context.Context, id string) error {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.UpdateNote(ctx, note); err != nil {
		return err
	}
	s.embedQueue.Enqueue(id)
	return nil
}

// ExportAll returns every note with tags loaded, oldest first pages of 200.
func (s *Service) ExportAll(ctx context.Context) ([]storage.Note, error) {
	const page = 200
	var all []storage.Note
	for offset := 0; ; offset += page {
		batch, err := s.store.ListNotes(ctx, page, offset)
		if err != nil {
			return nil, fmt.Errorf("exporting notes: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < page {
			return all, nil
		}
	}
}

func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// extractURLs pulls bare http(s) URLs out of note content, stripping trailing
// punctuation that the regex greedily includes.
func extractURLs(content string) []string {
	matches := urlPattern.FindAllString(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimRight(m, ".,;:!?"))
	}
	return out
}
