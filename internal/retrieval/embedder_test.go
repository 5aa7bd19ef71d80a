package retrieval

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

type fakeEmbedClient struct {
	mu    sync.Mutex
	texts []string
	vec   []float32
	err   error
}

func (c *fakeEmbedClient) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.vec, nil
}

func TestEmbedder_TruncatesBeforeSending(t *testing.T) {
	client := &fakeEmbedClient{vec: []float32{1}}
	e := NewEmbedder(client, "test-model", 10)

	if _, err := e.Embed(context.Background(), strings.Repeat("x", 100)); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(client.texts) != 1 || len(client.texts[0]) != 10 {
		t.Errorf("sent %d chars, want 10", len(client.texts[0]))
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	e := NewEmbedder(&fakeEmbedClient{}, "test-model", 0)
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedBatch(nil) = (%v, %v), want (nil, nil)", vecs, err)
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	client := &fakeEmbedClient{vec: []float32{1}}
	e := NewEmbedder(client, "test-model", 0)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if v == nil {
			t.Errorf("vecs[%d] is nil", i)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"hello", 0, "hello"},
		{"héllo", 2, "hé"},
	}
	for _, c := range cases {
		got := Truncate(c.in, c.max)
		if got != c.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("Truncate(%q, %d) produced invalid UTF-8", c.in, c.max)
		}
	}
}

func TestRetrieverRelated_UnembeddedNoteReturnsEmpty(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteStore(db)
	e := NewEmbedder(&fakeEmbedClient{vec: []float32{1}}, "test-model", 0)
	r := NewRetriever(e, store)

	id := insertNote(t, db, "never embedded")
	results, err := r.Related(context.Background(), id, 5)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for an unembedded note, want 0", len(results))
	}
}

func TestRetrieverSearch_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteStore(db)
	client := &fakeEmbedClient{vec: []float32{1, 0}}
	r := NewRetriever(NewEmbedder(client, "test-model", 0), store)
	ctx := context.Background()

	id := insertNote(t, db, "findable")
	if err := store.ReplaceForNote(ctx, id, []Record{record(id, "findable text", []float32{1, 0})}); err != nil {
		t.Fatalf("ReplaceForNote: %v", err)
	}

	results, err := r.Search(ctx, "findable", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].NoteID != id {
		t.Fatalf("Search returned %d results, want the stored note", len(results))
	}
	if results[0].Score < 0.99 {
		t.Errorf("identical vectors scored %f, want ~1.0", results[0].Score)
	}
}
