package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/knowbot/internal/core"
)

type NotesRepo struct {
	db *sql.DB
}

func NewNotesRepo(db *sql.DB) *NotesRepo {
	return &NotesRepo{db: db}
}

func (r *NotesRepo) SaveNote(ctx context.Context, note core.Note) (core.Note, error) {
	if note.CreatedAt == 0 {
		note.CreatedAt = nowMillis()
	}
	if note.UpdatedAt == 0 {
		note.UpdatedAt = note.CreatedAt
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (session_id, topic, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		note.SessionID, note.Topic, note.Content, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to insert note: %w", err)
	}

	note.ID, err = res.LastInsertId()
	if err != nil {
		return core.Note{}, err
	}
	return note, nil
}

// ListNotes returns the newest notes first.
func (r *NotesRepo) ListNotes(ctx context.Context, sessionID string, limit int) ([]core.Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, topic, content, created_at, updated_at FROM notes
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []core.Note
	for rows.Next() {
		var n core.Note
		if err := rows.Scan(&n.ID, &n.SessionID, &n.Topic, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
