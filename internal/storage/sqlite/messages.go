package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/pkg/log"
)

type MessagesRepo struct {
	db *sql.DB
}

func NewMessagesRepo(db *sql.DB) *MessagesRepo {
	return &MessagesRepo{db: db}
}

// AddMessage appends a message. The timestamp is clamped to the newest one
// already in the session so the log never goes backwards when the clock does.
func (r *MessagesRepo) AddMessage(ctx context.Context, sessionID, role, content string) (core.StoredMessage, error) {
	msg := core.StoredMessage{SessionID: sessionID, Role: role, Content: content}

	query := `
		INSERT INTO messages (session_id, role, content, timestamp)
		SELECT ?, ?, ?, MAX(?, COALESCE((SELECT MAX(timestamp) FROM messages WHERE session_id = ?), 0))
		RETURNING id, timestamp`

	err := r.db.QueryRowContext(ctx, query, sessionID, role, content, nowMillis(), sessionID).
		Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return core.StoredMessage{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

func (r *MessagesRepo) GetMessages(ctx context.Context, sessionID string, limit int) ([]core.StoredMessage, error) {
	// Fetch the LAST 'limit' messages by ordering DESC
	query := `
		SELECT id, session_id, role, content, timestamp FROM messages
		WHERE session_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`

	return r.query(ctx, query, sessionID, limit)
}

func (r *MessagesRepo) GetMessagesBefore(ctx context.Context, sessionID string, beforeID int64, limit int) ([]core.StoredMessage, error) {
	query := `
		SELECT id, session_id, role, content, timestamp FROM messages
		WHERE session_id = ? AND id < ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`

	return r.query(ctx, query, sessionID, beforeID, limit)
}

func (r *MessagesRepo) query(ctx context.Context, query string, args ...any) ([]core.StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.StoredMessage
	for rows.Next() {
		var msg core.StoredMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest -> Oldest back to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Int("count", len(messages)).Msg("loaded history messages")
	return messages, nil
}

func (r *MessagesRepo) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (r *MessagesRepo) ListSessions(ctx context.Context) ([]core.SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MAX(id) FROM messages
		GROUP BY session_id ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []core.SessionSummary
	for rows.Next() {
		var s core.SessionSummary
		if err := rows.Scan(&s.SessionID, &s.Messages, &s.MaxID); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// TrimMessages deletes every message with id <= watermark except the newest
// keep of them. Rows above the watermark are never touched.
func (r *MessagesRepo) TrimMessages(ctx context.Context, sessionID string, watermark int64, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	query := `
		DELETE FROM messages
		WHERE session_id = ? AND id <= ? AND id NOT IN (
			SELECT id FROM messages
			WHERE session_id = ? AND id <= ?
			ORDER BY timestamp DESC, id DESC LIMIT ?
		)`

	res, err := r.db.ExecContext(ctx, query, sessionID, watermark, sessionID, watermark, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to trim messages: %w", err)
	}
	return res.RowsAffected()
}
