package retrieval

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/jeastham1993/zettel-system/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.DB()
}

func insertNote(t *testing.T, db *sql.DB, title string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO notes (id, title, content, created_at, updated_at, embed_updated_at)
		VALUES (?, ?, '', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`,
		id, title)
	if err != nil {
		t.Fatalf("inserting note: %v", err)
	}
	return id
}

func record(noteID string, chunk string, embedding []float32) Record {
	return Record{
		ID:        uuid.New().String(),
		NoteID:    noteID,
		TextChunk: chunk,
		Embedding: embedding,
		Model:     "test-model",
	}
}

func TestStoreSearch_RanksByCosineSimilarity(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	near := insertNote(t, db, "near")
	far := insertNote(t, db, "far")
	opposite := insertNote(t, db, "opposite")

	for _, setup := range []struct {
		noteID string
		vec    []float32
	}{
		{near, []float32{1, 0.1, 0}},
		{far, []float32{0, 1, 0}},
		{opposite, []float32{-1, 0, 0}},
	} {
		if err := store.ReplaceForNote(ctx, setup.noteID, []Record{record(setup.noteID, "chunk", setup.vec)}); err != nil {
			t.Fatalf("ReplaceForNote: %v", err)
		}
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 2, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].NoteID != near {
		t.Errorf("top result note = %s, want the nearest vector", results[0].NoteID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %f then %f", results[0].Score, results[1].Score)
	}
	for _, r := range results {
		if r.NoteID == opposite {
			t.Error("opposite vector made the top 2")
		}
	}
}

func TestStoreSearch_ExcludesOwnNote(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	self := insertNote(t, db, "self")
	other := insertNote(t, db, "other")
	if err := store.ReplaceForNote(ctx, self, []Record{record(self, "a", []float32{1, 0})}); err != nil {
		t.Fatalf("ReplaceForNote: %v", err)
	}
	if err := store.ReplaceForNote(ctx, other, []Record{record(other, "b", []float32{0.9, 0.1})}); err != nil {
		t.Fatalf("ReplaceForNote: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0}, 10, self)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.NoteID == self {
			t.Error("excluded note appeared in results")
		}
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestStoreSearch_EmptyStoreAndZeroQuery(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	if results, err := store.Search(ctx, []float32{1, 0}, 5, ""); err != nil || len(results) != 0 {
		t.Errorf("empty store: Search = (%v, %v), want no results", results, err)
	}

	id := insertNote(t, db, "something")
	if err := store.ReplaceForNote(ctx, id, []Record{record(id, "x", []float32{1, 0})}); err != nil {
		t.Fatalf("ReplaceForNote: %v", err)
	}
	if results, err := store.Search(ctx, []float32{0, 0}, 5, ""); err != nil || len(results) != 0 {
		t.Errorf("zero-norm query: Search = (%v, %v), want no results", results, err)
	}
}

func TestStoreReplaceForNote_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()
	id := insertNote(t, db, "reembedded")

	if err := store.ReplaceForNote(ctx, id, []Record{
		record(id, "old a", []float32{1, 0}),
		record(id, "old b", []float32{0, 1}),
	}); err != nil {
		t.Fatalf("first ReplaceForNote: %v", err)
	}
	if err := store.ReplaceForNote(ctx, id, []Record{record(id, "fresh", []float32{1, 1})}); err != nil {
		t.Fatalf("second ReplaceForNote: %v", err)
	}

	vectors, err := store.VectorsForNote(ctx, id)
	if err != nil {
		t.Fatalf("VectorsForNote: %v", err)
	}
	if len(vectors) != 1 || vectors[0].TextChunk != "fresh" {
		t.Errorf("got %d vectors, want only the latest replacement", len(vectors))
	}
}

func TestStoreDeleteForNote(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()
	id := insertNote(t, db, "emptied")

	if err := store.ReplaceForNote(ctx, id, []Record{record(id, "x", []float32{1})}); err != nil {
		t.Fatalf("ReplaceForNote: %v", err)
	}
	if err := store.DeleteForNote(ctx, id); err != nil {
		t.Fatalf("DeleteForNote: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count = %d, want 0", count)
	}
}

func TestEncodeDecodeFloat32s(t *testing.T) {
	in := []float32{0.25, -1.5, 0, 3.75}
	out, err := decodeFloat32s(encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decodeFloat32s: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %f, want %f", i, out[i], in[i])
		}
	}

	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("decodeFloat32s accepted a truncated blob")
	}
}
