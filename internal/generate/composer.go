package generate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jeastham1993/zettel-system/internal/retrieval"
	"github.com/jeastham1993/zettel-system/internal/storage"
)

// wikiLinkPattern matches [[Note Title]] references inside note content.
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// NoteReader is the subset of storage the composer needs.
type NoteReader interface {
	GetNote(ctx context.Context, id string) (storage.Note, error)
	GetNoteByTitle(ctx context.Context, title string) (storage.Note, error)
}

// RelatedFinder returns chunks semantically similar to a note.
type RelatedFinder interface {
	Related(ctx context.Context, noteID string, topK int) ([]retrieval.ScoredRecord, error)
}

// Composer assembles the prompt for a generation run: the seed note, its
// wiki-linked neighbors, and its semantic neighbors, framed by the voice's
// style instructions.
type Composer struct {
	notes   NoteReader
	related RelatedFinder
	topK    int
}

// NewComposer creates a Composer. topK bounds the number of semantic
// neighbors included; pass 0 for the default of 5.
func NewComposer(notes NoteReader, related RelatedFinder, topK int) *Composer {
	if topK <= 0 {
		topK = 5
	}
	return &Composer{notes: notes, related: related, topK: topK}
}

// Prompt is the composed system and user message pair for a chat model.
type Prompt struct {
	System string
	User   string
}

// Compose builds the prompt for a generation run. A missing seed note or
// voice is tolerated: the prompt degrades to topic-only generation.
func (c *Composer) Compose(ctx context.Context, gen storage.Generation, voice storage.Voice) (Prompt, error) {
	var sb strings.Builder

	switch gen.Kind {
	case "social":
		sb.WriteString("Draft a short social media post")
	default:
		sb.WriteString("Draft a blog post")
	}
	if gen.Topic != "" {
		fmt.Fprintf(&sb, " about: %s", gen.Topic)
	}
	sb.WriteString("\n\n")

	if gen.SeedNoteID != "" {
		if err := c.writeSeedContext(ctx, &sb, gen.SeedNoteID); err != nil {
			return Prompt{}, err
		}
	}

	sb.WriteString("Ground the draft in the source material above. Do not invent facts that are not supported by it.")

	return Prompt{System: systemPrompt(voice), User: sb.String()}, nil
}

func (c *Composer) writeSeedContext(ctx context.Context, sb *strings.Builder, seedID string) error {
	seed, err := c.notes.GetNote(ctx, seedID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading seed note %s: %w", seedID, err)
	}

	sb.WriteString("## Source note\n\n")
	fmt.Fprintf(sb, "# %s\n\n%s\n\n", seed.Title, seed.Content)

	if linked := c.linkedNotes(ctx, seed); len(linked) > 0 {
		sb.WriteString("## Linked notes\n\n")
		for _, n := range linked {
			fmt.Fprintf(sb, "### %s\n\n%s\n\n", n.Title, retrieval.Truncate(n.Content, 1000))
		}
	}

	neighbors, err := c.related.Related(ctx, seedID, c.topK)
	if err != nil {
		return fmt.Errorf("finding related notes for %s: %w", seedID, err)
	}
	if len(neighbors) > 0 {
		sb.WriteString("## Related notes\n\n")
		for _, n := range neighbors {
			fmt.Fprintf(sb, "- %s\n", strings.TrimSpace(n.TextChunk))
		}
		sb.WriteString("\n")
	}
	return nil
}

// linkedNotes resolves [[Title]] references in the seed's content. Broken
// links are skipped rather than failing the run.
func (c *Composer) linkedNotes(ctx context.Context, seed storage.Note) []storage.Note {
	var linked []storage.Note
	seen := map[string]struct{}{seed.ID: {}}
	for _, match := range wikiLinkPattern.FindAllStringSubmatch(seed.Content, -1) {
		title := strings.TrimSpace(match[1])
		if title == "" {
			continue
		}
		n, err := c.notes.GetNoteByTitle(ctx, title)
		if err != nil {
			continue
		}
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		linked = append(linked, n)
	}
	return linked
}

func systemPrompt(voice storage.Voice) string {
	base := "You are a writing assistant drafting content from a personal note collection."
	if voice.StylePrompt == "" {
		return base
	}
	return base + "\n\nVoice and style instructions:\n" + voice.StylePrompt
}
