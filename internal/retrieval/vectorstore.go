package retrieval

import "time"

// Record represents a row in the note_vectors table: one embedded chunk of a
// note's content.
type Record struct {
	ID        string
	NoteID    string
	TextChunk string
	Embedding []float32
	Model     string
	CreatedAt time.Time
}

// ScoredRecord is a Record with a cosine-similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
