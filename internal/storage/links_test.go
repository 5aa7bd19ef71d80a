package storage

import (
	"context"
	"testing"

	"github.com/jeastham1993/zettel-system/internal/outbox"
)

func linkURLs(links []NoteLink) []string {
	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	return urls
}

func TestReplaceNoteLinks_InsertsNewAsPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	noteID := saveTestNote(t, s, "with links")

	err := s.ReplaceNoteLinks(ctx, noteID, []string{"https://go.dev", "https://sqlite.org"})
	if err != nil {
		t.Fatalf("ReplaceNoteLinks: %v", err)
	}

	links, err := s.ListLinksForNote(ctx, noteID)
	if err != nil {
		t.Fatalf("ListLinksForNote: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2: %v", len(links), linkURLs(links))
	}
	for _, l := range links {
		if l.FetchStatus != outbox.StatusPending {
			t.Errorf("link %s status = %s, want pending", l.URL, l.FetchStatus)
		}
	}
}

func TestReplaceNoteLinks_KeepsEnrichmentOfSurvivors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	noteID := saveTestNote(t, s, "edited note")

	if err := s.ReplaceNoteLinks(ctx, noteID, []string{"https://go.dev", "https://old.example"}); err != nil {
		t.Fatalf("first ReplaceNoteLinks: %v", err)
	}

	links, err := s.ListLinksForNote(ctx, noteID)
	if err != nil {
		t.Fatalf("ListLinksForNote: %v", err)
	}
	var keptID string
	for _, l := range links {
		if l.URL == "https://go.dev" {
			keptID = l.ID
		}
	}

	// Enrich the surviving link before the edit.
	ob := s.EnrichmentOutbox(3)
	if _, err := ob.Claim(ctx, keptID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := s.SetLinkMetadata(ctx, keptID, "The Go Programming Language", "Go docs", "go.dev"); err != nil {
		t.Fatalf("SetLinkMetadata: %v", err)
	}
	if err := ob.MarkCompleted(ctx, keptID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	// The edit drops one URL and adds another.
	if err := s.ReplaceNoteLinks(ctx, noteID, []string{"https://go.dev", "https://new.example"}); err != nil {
		t.Fatalf("second ReplaceNoteLinks: %v", err)
	}

	links, err = s.ListLinksForNote(ctx, noteID)
	if err != nil {
		t.Fatalf("ListLinksForNote: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2: %v", len(links), linkURLs(links))
	}

	byURL := make(map[string]NoteLink, len(links))
	for _, l := range links {
		byURL[l.URL] = l
	}
	if _, dropped := byURL["https://old.example"]; dropped {
		t.Error("removed URL still stored")
	}
	kept, ok := byURL["https://go.dev"]
	if !ok {
		t.Fatal("surviving URL missing")
	}
	if kept.ID != keptID || kept.FetchStatus != outbox.StatusCompleted || kept.Title == "" {
		t.Errorf("surviving link lost its enrichment: %+v", kept)
	}
	if added, ok := byURL["https://new.example"]; !ok || added.FetchStatus != outbox.StatusPending {
		t.Errorf("new URL not inserted pending: %+v", added)
	}
}

func TestReplaceNoteLinks_DeduplicatesURLs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	noteID := saveTestNote(t, s, "repeats")

	err := s.ReplaceNoteLinks(ctx, noteID, []string{"https://go.dev", "https://go.dev"})
	if err != nil {
		t.Fatalf("ReplaceNoteLinks: %v", err)
	}

	links, err := s.ListLinksForNote(ctx, noteID)
	if err != nil {
		t.Fatalf("ListLinksForNote: %v", err)
	}
	if len(links) != 1 {
		t.Errorf("got %d links for a repeated URL, want 1", len(links))
	}
}

func TestGetLink_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetLink(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("GetLink on missing id = %v, want ErrNotFound", err)
	}
}
