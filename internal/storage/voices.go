package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const voiceColumns = `id, name, description, style_prompt, created_at, updated_at`

// SaveVoice inserts a new voice configuration.
func (s *Store) SaveVoice(ctx context.Context, v Voice) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voices (id, name, description, style_prompt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Description, v.StylePrompt, now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting voice: %w", err)
	}
	return nil
}

// UpdateVoice updates an existing voice configuration.
func (s *Store) UpdateVoice(ctx context.Context, v Voice) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE voices SET name = ?, description = ?, style_prompt = ?, updated_at = ?
		WHERE id = ?`,
		v.Name, v.Description, v.StylePrompt, now, v.ID,
	)
	if err != nil {
		return fmt.Errorf("updating voice: %w", err)
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

// GetVoice returns a single voice configuration.
func (s *Store) GetVoice(ctx context.Context, id string) (Voice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+voiceColumns+` FROM voices WHERE id = ?`, id)
	v, err := scanVoice(row)
	if err == sql.ErrNoRows {
		return Voice{}, ErrNotFound
	}
	if err != nil {
		return Voice{}, err
	}
	return v, nil
}

// ListVoices returns all voice configurations ordered by name.
func (s *Store) ListVoices(ctx context.Context) ([]Voice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+voiceColumns+` FROM voices ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying voices: %w", err)
	}
	defer rows.Close()

	var voices []Voice
	for rows.Next() {
		v, err := scanVoice(rows)
		if err != nil {
			return nil, err
		}
		voices = append(voices, v)
	}
	return voices, rows.Err()
}

// DeleteVoice removes a voice configuration.
func (s *Store) DeleteVoice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM voices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting voice: %w", err)
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

func scanVoice(row rowScanner) (Voice, error) {
	var v Voice
	var createdAt, updatedAt string
	err := row.Scan(&v.ID, &v.Name, &v.Description, &v.StylePrompt, &createdAt, &updatedAt)
	if err != nil {
		return Voice{}, err
	}
	if v.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Voice{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if v.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Voice{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return v, nil
}
