package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sandevgo/knowbot/internal/core"
)

// StateRepo keeps one JSON encoded core.SessionState per session.
type StateRepo struct {
	db *sql.DB
}

func NewStateRepo(db *sql.DB) *StateRepo {
	return &StateRepo{db: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *StateRepo) GetState(ctx context.Context, sessionID string) (core.SessionState, error) {
	return getState(ctx, r.db, sessionID)
}

func (r *StateRepo) SetState(ctx context.Context, sessionID string, state core.SessionState) error {
	return setState(ctx, r.db, sessionID, state)
}

// UpdateState runs fn on the stored state inside a transaction.
func (r *StateRepo) UpdateState(ctx context.Context, sessionID string, fn func(*core.SessionState)) (core.SessionState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.SessionState{}, err
	}
	defer tx.Rollback()

	state, err := getState(ctx, tx, sessionID)
	if err != nil {
		return core.SessionState{}, err
	}

	fn(&state)

	if err := setState(ctx, tx, sessionID, state); err != nil {
		return core.SessionState{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.SessionState{}, fmt.Errorf("failed to commit state: %w", err)
	}
	return state, nil
}

func getState(ctx context.Context, q queryer, sessionID string) (core.SessionState, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM session_state WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SessionState{}, nil
	}
	if err != nil {
		return core.SessionState{}, fmt.Errorf("failed to query state: %w", err)
	}

	var state core.SessionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return core.SessionState{}, fmt.Errorf("failed to decode state: %w", err)
	}
	return state, nil
}

func setState(ctx context.Context, q queryer, sessionID string, state core.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO session_state (session_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		sessionID, string(data), nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}
