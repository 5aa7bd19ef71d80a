package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jeastham1993/zettel-system/internal/outbox"
)

const generationColumns = `id, kind, topic, voice_id, seed_note_id, result,
	status, attempts, last_error, scheduled_at, created_at, updated_at`

// SaveGeneration inserts a new content-generation run in pending state.
// A zero ScheduledAt means "run as soon as possible".
func (s *Store) SaveGeneration(ctx context.Context, g Generation) error {
	now := time.Now().UTC()
	scheduledAt := now
	if !g.ScheduledAt.IsZero() {
		scheduledAt = g.ScheduledAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generations (id, kind, topic, voice_id, seed_note_id, result,
			status, attempts, last_error, scheduled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '', 'pending', 0, '', ?, ?, ?)`,
		g.ID, g.Kind, g.Topic, g.VoiceID, g.SeedNoteID,
		scheduledAt.Format(time.RFC3339), now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting generation: %w", err)
	}
	return nil
}

// GetGeneration returns a single generation run.
func (s *Store) GetGeneration(ctx context.Context, id string) (Generation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = ?`, id)
	g, err := scanGeneration(row)
	if err == sql.ErrNoRows {
		return Generation{}, ErrNotFound
	}
	if err != nil {
		return Generation{}, err
	}
	return g, nil
}

// ListGenerations returns generation runs, newest first.
func (s *Store) ListGenerations(ctx context.Context, limit, offset int) ([]Generation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+generationColumns+` FROM generations
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying generations: %w", err)
	}
	defer rows.Close()

	var gens []Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// DeleteGeneration removes a generation run.
func (s *Store) DeleteGeneration(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM generations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting generation: %w", err)
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

// SetGenerationResult records the drafted content. Called by the generation
// executor before the status transition to completed.
func (s *Store) SetGenerationResult(ctx context.Context, id, result string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE generations SET result = ? WHERE id = ?`, result, id)
	return err
}

func scanGeneration(row rowScanner) (Generation, error) {
	var g Generation
	var status string
	var scheduledAt, createdAt, updatedAt string
	err := row.Scan(
		&g.ID, &g.Kind, &g.Topic, &g.VoiceID, &g.SeedNoteID, &g.Result,
		&status, &g.Attempts, &g.LastError, &scheduledAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return Generation{}, err
	}

	parsed, ok := outbox.ParseStatus(status)
	if !ok {
		return Generation{}, fmt.Errorf("generation %s has unknown status %q", g.ID, status)
	}
	g.Status = parsed

	if g.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAt); err != nil {
		return Generation{}, fmt.Errorf("parsing scheduled_at: %w", err)
	}
	if g.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Generation{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Generation{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return g, nil
}
