package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeastham1993/zettel-system/internal/outbox"
)

const linkColumns = `id, note_id, url, title, description, site_name,
	fetch_status, fetch_attempts, fetch_error, created_at, updated_at`

// ReplaceNoteLinks reconciles the stored links for a note against the URLs
// currently present in its content. New URLs are inserted pending so the
// enrichment pipeline picks them up; removed URLs are deleted; URLs that are
// still present keep their enrichment state.
func (s *Store) ReplaceNoteLinks(ctx context.Context, noteID string, urls []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning link transaction: %w", err)
	}
	defer tx.Rollback()

	existing := make(map[string]struct{})
	rows, err := tx.QueryContext(ctx, `SELECT url FROM note_links WHERE note_id = ?`, noteID)
	if err != nil {
		return fmt.Errorf("querying existing links: %w", err)
	}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return err
		}
		existing[u] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	wanted := make(map[string]struct{}, len(urls))
	now := time.Now().UTC().Format(time.RFC3339)
	for _, u := range urls {
		if _, seen := wanted[u]; seen {
			continue
		}
		wanted[u] = struct{}{}
		if _, ok := existing[u]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO note_links (id, note_id, url, fetch_status, fetch_attempts, created_at, updated_at)
			VALUES (?, ?, ?, 'pending', 0, ?, ?)`,
			uuid.New().String(), noteID, u, now, now,
		); err != nil {
			return fmt.Errorf("inserting link %q: %w", u, err)
		}
	}

	for u := range existing {
		if _, ok := wanted[u]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_links WHERE note_id = ? AND url = ?`, noteID, u); err != nil {
			return fmt.Errorf("deleting link %q: %w", u, err)
		}
	}

	return tx.Commit()
}

// GetLink returns a single note link.
func (s *Store) GetLink(ctx context.Context, id string) (NoteLink, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM note_links WHERE id = ?`, id)
	l, err := scanLink(row)
	if err == sql.ErrNoRows {
		return NoteLink{}, ErrNotFound
	}
	if err != nil {
		return NoteLink{}, err
	}
	return l, nil
}

// ListLinksForNote returns all links for a note, oldest first.
func (s *Store) ListLinksForNote(ctx context.Context, noteID string) ([]NoteLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+linkColumns+` FROM note_links
		WHERE note_id = ? ORDER BY created_at ASC`, noteID)
	if err != nil {
		return nil, fmt.Errorf("querying note links: %w", err)
	}
	defer rows.Close()

	var links []NoteLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// SetLinkMetadata records the enrichment result for a link. Called by the
// enrichment executor before the status transition to completed.
func (s *Store) SetLinkMetadata(ctx context.Context, id, title, description, siteName string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE note_links SET title = ?, description = ?, site_name = ? WHERE id = ?`,
		title, description, siteName, id)
	return err
}

func scanLink(row rowScanner) (NoteLink, error) {
	var l NoteLink
	var status string
	var createdAt, updatedAt string
	err := row.Scan(
		&l.ID, &l.NoteID, &l.URL, &l.Title, &l.Description, &l.SiteName,
		&status, &l.FetchAttempts, &l.FetchError, &createdAt, &updatedAt,
	)
	if err != nil {
		return NoteLink{}, err
	}

	parsed, ok := outbox.ParseStatus(status)
	if !ok {
		return NoteLink{}, fmt.Errorf("link %s has unknown fetch status %q", l.ID, status)
	}
	l.FetchStatus = parsed

	if l.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return NoteLink{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if l.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return NoteLink{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return l, nil
}
