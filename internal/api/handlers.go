package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jeastham1993/zettel-system/internal/importer"
	"github.com/jeastham1993/zettel-system/internal/notes"
	"github.com/jeastham1993/zettel-system/internal/outbox"
	"github.com/jeastham1993/zettel-system/internal/storage"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxImportBodySize = 20 << 20 // PDFs are bulky

// StuckSource pairs one pipeline's outbox with that pipeline's grace window,
// since a slow generation run and a quick metadata fetch age at different
// rates.
type StuckSource struct {
	Outbox *storage.OutboxStore
	Grace  time.Duration
}

// Deps holds the dependencies for the HTTP API.
type Deps struct {
	Notes    *notes.Service
	Store    *storage.Store
	Importer *importer.Importer
	GenQueue *outbox.Queue
	Outboxes []StuckSource
	Token    string
}

// NewHandler builds the full HTTP API. Everything except /health requires
// bearer auth.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Route("/notes", func(r chi.Router) {
			r.Post("/", handleCreateNote(deps))
			r.Get("/", handleListNotes(deps))
			r.Post("/reembed", handleReembedAll(deps))
			r.Get("/{id}", handleGetNote(deps))
			r.Put("/{id}", handleUpdateNote(deps))
			r.Delete("/{id}", handleDeleteNote(deps))
			r.Get("/{id}/related", handleRelatedNotes(deps))
			r.Get("/{id}/links", handleNoteLinks(deps))
			r.Post("/{id}/reembed", handleReembedNote(deps))
		})

		r.Get("/tags", handleTags(deps))
		r.Get("/search", handleSearch(deps))

		r.Route("/generations", func(r chi.Router) {
			r.Post("/", handleCreateGeneration(deps))
			r.Get("/", handleListGenerations(deps))
			r.Get("/{id}", handleGetGeneration(deps))
			r.Delete("/{id}", handleDeleteGeneration(deps))
		})

		r.Route("/voices", func(r chi.Router) {
			r.Post("/", handleCreateVoice(deps))
			r.Get("/", handleListVoices(deps))
			r.Get("/{id}", handleGetVoice(deps))
			r.Put("/{id}", handleUpdateVoice(deps))
			r.Delete("/{id}", handleDeleteVoice(deps))
		})

		r.Get("/outbox/stuck", handleStuckItems(deps))
		r.Post("/import", handleImport(deps))
		r.Get("/export", handleExport(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// noteView is the JSON shape of a note, embedding pipeline state included so
// clients can show "still indexing" affordances.
type noteView struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Tags          []string `json:"tags"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	EmbedStatus   string   `json:"embed_status"`
	EmbedAttempts int      `json:"embed_attempts"`
	EmbedError    string   `json:"embed_error,omitempty"`
	EmbedModel    string   `json:"embed_model,omitempty"`
}

func toNoteView(n storage.Note) noteView {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return noteView{
		ID:            n.ID,
		Title:         n.Title,
		Content:       n.Content,
		Tags:          tags,
		CreatedAt:     n.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     n.UpdatedAt.Format(time.RFC3339),
		EmbedStatus:   string(n.EmbedStatus),
		EmbedAttempts: n.EmbedAttempts,
		EmbedError:    n.EmbedError,
		EmbedModel:    n.EmbedModel,
	}
}

type noteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

func handleCreateNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req noteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		note, err := deps.Notes.Create(r.Context(), req.Title, req.Content, req.Tags)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create note: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, toNoteView(note))
	}
}

func handleListNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		offset := parseIntParam(r, "offset", 0, 0)

		list, err := deps.Notes.List(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list notes: %v", err)
			return
		}

		views := make([]noteView, len(list))
		for i, n := range list {
			views[i] = toNoteView(n)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		note, err := deps.Notes.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "note not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get note: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toNoteView(note))
	}
}

func handleUpdateNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req noteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		note, err := deps.Notes.Update(r.Context(), chi.URLParam(r, "id"), req.Title, req.Content, req.Tags)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "note not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update note: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toNoteView(note))
	}
}

func handleDeleteNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Notes.Delete(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "note not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete note: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

type scoredNoteView struct {
	noteView
	Score float32 `json:"score"`
}

func handleRelatedNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 5, 50)
		hits, err := deps.Notes.Related(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to find related notes: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toScoredViews(hits))
	}
}

func toScoredViews(hits []notes.ScoredNote) []scoredNoteView {
	views := make([]scoredNoteView, len(hits))
	for i, h := range hits {
		views[i] = scoredNoteView{noteView: toNoteView(h.Note), Score: h.Score}
	}
	return views
}

type linkView struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	FetchStatus string `json:"fetch_status"`
	FetchError  string `json:"fetch_error,omitempty"`
}

func handleNoteLinks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		links, err := deps.Notes.Links(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list links: %v", err)
			return
		}

		views := make([]linkView, len(links))
		for i, l := range links {
			views[i] = linkView{
				ID:          l.ID,
				URL:         l.URL,
				Title:       l.Title,
				Description: l.Description,
				SiteName:    l.SiteName,
				FetchStatus: string(l.FetchStatus),
				FetchError:  l.FetchError,
			}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleReembedNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Notes.Reembed(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "note not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue re-embedding: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
	}
}

func handleReembedAll(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := deps.Notes.ReembedAll(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to flag notes: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "queued", "count": count})
	}
}

func handleTags(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		tags, err := deps.Notes.Tags(r.Context(), r.URL.Query().Get("prefix"), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tags: %v", err)
			return
		}
		if tags == nil {
			tags = []string{}
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		limit := parseIntParam(r, "limit", 10, 100)

		switch mode := r.URL.Query().Get("mode"); mode {
		case "", "semantic":
			hits, err := deps.Notes.SearchSemantic(r.Context(), query, limit)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
				return
			}
			writeJSON(w, http.StatusOK, toScoredViews(hits))
		case "text":
			list, err := deps.Notes.SearchText(r.Context(), query, limit)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
				return
			}
			views := make([]noteView, len(list))
			for i, n := range list {
				views[i] = toNoteView(n)
			}
			writeJSON(w, http.StatusOK, views)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "mode %q is not one of text, semantic", mode)
		}
	}
}

type generationRequest struct {
	Kind        string `json:"kind"`
	Topic       string `json:"topic"`
	VoiceID     string `json:"voice_id"`
	SeedNoteID  string `json:"seed_note_id"`
	ScheduledAt string `json:"scheduled_at"` // RFC3339; empty means now
}

type generationView struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Topic       string `json:"topic,omitempty"`
	VoiceID     string `json:"voice_id,omitempty"`
	SeedNoteID  string `json:"seed_note_id,omitempty"`
	Result      string `json:"result,omitempty"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error,omitempty"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
}

func toGenerationView(g storage.Generation) generationView {
	return generationView{
		ID:          g.ID,
		Kind:        g.Kind,
		Topic:       g.Topic,
		VoiceID:     g.VoiceID,
		SeedNoteID:  g.SeedNoteID,
		Result:      g.Result,
		Status:      string(g.Status),
		Attempts:    g.Attempts,
		LastError:   g.LastError,
		ScheduledAt: g.ScheduledAt.Format(time.RFC3339),
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
	}
}

func handleCreateGeneration(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req generationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Kind != "blog" && req.Kind != "social" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "kind must be blog or social")
			return
		}
		if req.Topic == "" && req.SeedNoteID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of topic or seed_note_id is required")
			return
		}

		var scheduledAt time.Time
		if req.ScheduledAt != "" {
			var err error
			scheduledAt, err = time.Parse(time.RFC3339, req.ScheduledAt)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "scheduled_at must be RFC3339: %v", err)
				return
			}
		}

		if req.VoiceID != "" {
			if _, err := deps.Store.GetVoice(r.Context(), req.VoiceID); errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "voice %s not found", req.VoiceID)
				return
			}
		}
		if req.SeedNoteID != "" {
			if _, err := deps.Store.GetNote(r.Context(), req.SeedNoteID); errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "note %s not found", req.SeedNoteID)
				return
			}
		}

		gen := storage.Generation{
			ID:          uuid.New().String(),
			Kind:        req.Kind,
			Topic:       req.Topic,
			VoiceID:     req.VoiceID,
			SeedNoteID:  req.SeedNoteID,
			ScheduledAt: scheduledAt,
		}
		if err := deps.Store.SaveGeneration(r.Context(), gen); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save generation: %v", err)
			return
		}

		// Future-scheduled runs are released by the poller when due.
		if scheduledAt.IsZero() || !scheduledAt.After(time.Now()) {
			deps.GenQueue.Enqueue(gen.ID)
		}

		saved, err := deps.Store.GetGeneration(r.Context(), gen.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load generation: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, toGenerationView(saved))
	}
}

func handleListGenerations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		gens, err := deps.Store.ListGenerations(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list generations: %v", err)
			return
		}

		views := make([]generationView, len(gens))
		for i, g := range gens {
			views[i] = toGenerationView(g)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetGeneration(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := deps.Store.GetGeneration(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "generation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get generation: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toGenerationView(g))
	}
}

func handleDeleteGeneration(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteGeneration(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "generation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete generation: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

type voiceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StylePrompt string `json:"style_prompt"`
}

type voiceView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StylePrompt string `json:"style_prompt"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toVoiceView(v storage.Voice) voiceView {
	return voiceView{
		ID:          v.ID,
		Name:        v.Name,
		Description: v.Description,
		StylePrompt: v.StylePrompt,
		CreatedAt:   v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   v.UpdatedAt.Format(time.RFC3339),
	}
}

func handleCreateVoice(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req voiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		v := storage.Voice{
			ID:          uuid.New().String(),
			Name:        req.Name,
			Description: req.Description,
			StylePrompt: req.StylePrompt,
		}
		if err := deps.Store.SaveVoice(r.Context(), v); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save voice: %v", err)
			return
		}

		saved, err := deps.Store.GetVoice(r.Context(), v.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load voice: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, toVoiceView(saved))
	}
}

func handleListVoices(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		voices, err := deps.Store.ListVoices(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list voices: %v", err)
			return
		}

		views := make([]voiceView, len(voices))
		for i, v := range voices {
			views[i] = toVoiceView(v)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetVoice(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Store.GetVoice(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "voice not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get voice: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toVoiceView(v))
	}
}

func handleUpdateVoice(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req voiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		v := storage.Voice{
			ID:          chi.URLParam(r, "id"),
			Name:        req.Name,
			Description: req.Description,
			StylePrompt: req.StylePrompt,
		}
		err := deps.Store.UpdateVoice(r.Context(), v)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "voice not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update voice: %v", err)
			return
		}

		saved, err := deps.Store.GetVoice(r.Context(), v.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load voice: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toVoiceView(saved))
	}
}

func handleDeleteVoice(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteVoice(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "voice not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete voice: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

type stuckItemView struct {
	Pipeline  string `json:"pipeline"`
	ID        string `json:"id"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

func handleStuckItems(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views := []stuckItemView{}
		for _, src := range deps.Outboxes {
			items, err := src.Outbox.ListStuck(r.Context(), src.Grace)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to list stuck items: %v", err)
				return
			}
			for _, item := range items {
				views = append(views, stuckItemView{
					Pipeline:  item.Pipeline,
					ID:        item.ID,
					Status:    string(item.Status),
					Attempts:  item.Attempts,
					LastError: item.LastError,
					UpdatedAt: item.UpdatedAt.Format(time.RFC3339),
				})
			}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

type importRequest struct {
	Type     string   `json:"type"` // markdown or pdf
	Filename string   `json:"filename"`
	Content  string   `json:"content"` // text, or base64 for pdf
	Tags     []string `json:"tags"`
}

func handleImport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		var note storage.Note
		var err error
		switch req.Type {
		case "", "markdown":
			note, err = deps.Importer.ImportMarkdown(r.Context(), req.Filename, req.Content, req.Tags)
		case "pdf":
			data, decErr := base64.StdEncoding.DecodeString(req.Content)
			if decErr != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "content must be base64 for pdf imports")
				return
			}
			note, err = deps.Importer.ImportPDF(r.Context(), req.Filename, data, req.Tags)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "type %q is not one of markdown, pdf", req.Type)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "import failed: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, toNoteView(note))
	}
}

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := deps.Notes.ExportAll(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "export failed: %v", err)
			return
		}

		views := make([]noteView, len(all))
		for i, n := range all {
			views[i] = toNoteView(n)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"exported_at": time.Now().UTC().Format(time.RFC3339),
			"count":       len(views),
			"notes":       views,
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
