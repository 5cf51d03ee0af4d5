package core

import "context"

// SessionSummary describes one session present in the message log.
type SessionSummary struct {
	SessionID string
	Messages  int
	MaxID     int64
}

type MessagesRepository interface {
	// AddMessage appends to the session log and returns the stored row.
	AddMessage(ctx context.Context, sessionID, role, content string) (StoredMessage, error)
	// GetMessages returns up to limit most recent messages in chronological order.
	GetMessages(ctx context.Context, sessionID string, limit int) ([]StoredMessage, error)
	// GetMessagesBefore is GetMessages restricted to rows with ID < beforeID.
	GetMessagesBefore(ctx context.Context, sessionID string, beforeID int64, limit int) ([]StoredMessage, error)
	CountMessages(ctx context.Context, sessionID string) (int, error)
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	// TrimMessages keeps the newest keep rows with ID <= watermark and
	// returns how many were deleted.
	TrimMessages(ctx context.Context, sessionID string, watermark int64, keep int) (int64, error)
}

type NotesRepository interface {
	SaveNote(ctx context.Context, note Note) (Note, error)
	ListNotes(ctx context.Context, sessionID string, limit int) ([]Note, error)
}
