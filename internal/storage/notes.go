package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeastham1993/zettel-system/internal/outbox"
)

const noteColumns = `id, title, content, created_at, updated_at,
	embed_status, embed_attempts, embed_error, embed_model, embed_updated_at`

// SaveNote inserts a new note with its tags. The note starts with
// embed_status pending so the embedding pipeline picks it up.
func (s *Store) SaveNote(ctx context.Context, n Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := now
	if !n.CreatedAt.IsZero() {
		createdAt = n.CreatedAt.UTC().Format(time.RFC3339)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, created_at, updated_at,
			embed_status, embed_attempts, embed_error, embed_model, embed_updated_at)
		VALUES (?, ?, ?, ?, ?, 'pending', 0, '', '', ?)`,
		n.ID, n.Title, n.Content, createdAt, now, now,
	); err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}

	if err := setNoteTags(ctx, tx, n.ID, n.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateNote updates a note's title, content, and tags. Content may have
// changed, so the embedding outbox state is reset to pending with a fresh
// attempt budget.
func (s *Store) UpdateNote(ctx context.Context, n Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning update transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, updated_at = ?,
			embed_status = 'pending', embed_attempts = 0, embed_error = '', embed_updated_at = ?
		WHERE id = ?`,
		n.Title, n.Content, now, now, n.ID,
	)
	if err != nil {
		return fmt.Errorf("updating note: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, n.ID); err != nil {
		return fmt.Errorf("clearing note tags: %w", err)
	}
	if err := setNoteTags(ctx, tx, n.ID, n.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

func setNoteTags(ctx context.Context, tx *sql.Tx, noteID string, tags []string) error {
	for _, name := range tags {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var tagID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID)
		if err == sql.ErrNoRows {
			tagID = uuid.New().String()
			if _, err := tx.ExecContext(ctx, `INSERT INTO tags (id, name) VALUES (?, ?)`, tagID, name); err != nil {
				return fmt.Errorf("inserting tag %q: %w", name, err)
			}
		} else if err != nil {
			return fmt.Errorf("looking up tag %q: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO note_tags (note_id, tag_id) VALUES (?, ?)`, noteID, tagID); err != nil {
			return fmt.Errorf("linking tag %q: %w", name, err)
		}
	}
	return nil
}

// GetNote returns a note with its tags.
func (s *Store) GetNote(ctx context.Context, id string) (Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}

	tags, err := s.noteTags(ctx, id)
	if err != nil {
		return Note{}, err
	}
	n.Tags = tags
	return n, nil
}

func (s *Store) noteTags(ctx context.Context, noteID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN note_tags nt ON nt.tag_id = t.id
		WHERE nt.note_id = ?
		ORDER BY t.name ASC`, noteID)
	if err != nil {
		return nil, fmt.Errorf("querying note tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// ListNotes returns notes ordered by most recently updated, with tags loaded.
func (s *Store) ListNotes(ctx context.Context, limit, offset int) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM notes
		ORDER BY updated_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	notes, err := collectNotes(rows)
	if err != nil {
		return nil, err
	}
	return s.attachTags(ctx, notes)
}

// SearchNotesText returns notes whose title or content contains the query,
// most recently updated first.
func (s *Store) SearchNotesText(ctx context.Context, query string, limit int) ([]Note, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()

	notes, err := collectNotes(rows)
	if err != nil {
		return nil, err
	}
	return s.attachTags(ctx, notes)
}

// GetNoteByTitle returns the note with the given title, matched
// case-insensitively. Used to resolve [[wiki links]].
func (s *Store) GetNoteByTitle(ctx context.Context, title string) (Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+noteColumns+` FROM notes WHERE title = ? COLLATE NOCASE LIMIT 1`, title)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

// DeleteNote removes a note. Links, tag joins, and vectors cascade.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CountNotes returns the total number of notes.
func (s *Store) CountNotes(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	return count, err
}

// TagsByPrefix returns tag names starting with prefix, for autocomplete.
// An empty prefix lists all tags.
func (s *Store) TagsByPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	pattern := escapeLike(prefix) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM tags WHERE name LIKE ? ESCAPE '\'
		ORDER BY name ASC LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// MarkAllNotesStale flags every note for re-embedding, typically after an
// embedding model swap. The poller resets stale items to pending with a
// fresh attempt budget.
func (s *Store) MarkAllNotesStale(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET embed_status = 'stale', embed_updated_at = ?`, now)
	if err != nil {
		return 0, fmt.Errorf("marking notes stale: %w", err)
	}
	return res.RowsAffected()
}

// SetNoteEmbedModel records which model produced the note's current vectors.
// Called by the embedding executor before the status transition to completed.
func (s *Store) SetNoteEmbedModel(ctx context.Context, id, model string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notes SET embed_model = ? WHERE id = ?`, model, id)
	return err
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (Note, error) {
	var n Note
	var status string
	var createdAt, updatedAt, embedUpdatedAt string
	err := row.Scan(
		&n.ID, &n.Title, &n.Content, &createdAt, &updatedAt,
		&status, &n.EmbedAttempts, &n.EmbedError, &n.EmbedModel, &embedUpdatedAt,
	)
	if err != nil {
		return Note{}, err
	}

	parsed, ok := outbox.ParseStatus(status)
	if !ok {
		return Note{}, fmt.Errorf("note %s has unknown embed status %q", n.ID, status)
	}
	n.EmbedStatus = parsed

	if n.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Note{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if n.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Note{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	if n.EmbedUpdatedAt, err = time.Parse(time.RFC3339, embedUpdatedAt); err != nil {
		return Note{}, fmt.Errorf("parsing embed_updated_at: %w", err)
	}
	return n, nil
}

func collectNotes(rows *sql.Rows) ([]Note, error) {
	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *Store) attachTags(ctx context.Context, notes []Note) ([]Note, error) {
	for i := range notes {
		tags, err := s.noteTags(ctx, notes[i].ID)
		if err != nil {
			return nil, err
		}
		notes[i].Tags = tags
	}
	return notes, nil
}
