// Package conversation runs a chat turn end to end: persist the user message,
// build context, call the model, persist the reply, extract notes and count
// the turn.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/internal/service/memory"
	"github.com/sandevgo/knowbot/pkg/log"
)

const (
	FallbackReply = "I'm having trouble processing that right now. Could you try again?"

	MaxMessageBytes     = 16 * 1024
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 500
	DefaultModelTimeout = 60 * time.Second
)

type Stage string

const (
	StageReceived     Stage = "received"
	StageContextBuilt Stage = "context-built"
	StageModelInvoked Stage = "model-invoked"
	StagePersisted    Stage = "persisted"
	StageResponded    Stage = "responded"
	StageDegraded     Stage = "degraded"
)

// Notify observes stage transitions. It runs on the turn goroutine and must
// not block.
type Notify func(Stage)

type MessageLog interface {
	AddMessage(ctx context.Context, sessionID, role, content string) (core.StoredMessage, error)
	GetMessages(ctx context.Context, sessionID string, limit int) ([]core.StoredMessage, error)
}

type Sessions interface {
	Get(ctx context.Context, sessionID string) (core.SessionState, error)
	Initialize(ctx context.Context, sessionID string) (core.SessionState, error)
	RecordTurn(ctx context.Context, sessionID string) (core.SessionState, error)
}

type ContextBuilder interface {
	Build(ctx context.Context, sessionID string, beforeID int64, userMessage string) ([]core.Message, error)
}

type Manager struct {
	log       MessageLog
	notes     core.NotesRepository
	sessions  Sessions
	builder   ContextBuilder
	ai        core.AIProvider
	extractor memory.Extractor

	modelTimeout time.Duration
	historyLimit int
}

type Option func(*Manager)

func WithModelTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.modelTimeout = d
		}
	}
}

func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = min(n, MaxHistoryLimit)
		}
	}
}

func NewManager(
	messages MessageLog,
	notes core.NotesRepository,
	sessions Sessions,
	builder ContextBuilder,
	ai core.AIProvider,
	extractor memory.Extractor,
	opts ...Option,
) *Manager {
	m := &Manager{
		log:          messages,
		notes:        notes,
		sessions:     sessions,
		builder:      builder,
		ai:           ai,
		extractor:    extractor,
		modelTimeout: DefaultModelTimeout,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func Validate(sessionID, message string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is required", core.ErrInvalidInput)
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message is required", core.ErrInvalidInput)
	}
	if len(message) > MaxMessageBytes {
		return fmt.Errorf("%w: message exceeds %d bytes", core.ErrInvalidInput, MaxMessageBytes)
	}
	return nil
}

// HandleTurn processes one user message and returns the reply. A model
// failure is not an error: the fallback reply is stored and returned. If ctx
// is cancelled while the model runs the turn is abandoned with ctx.Err().
func (m *Manager) HandleTurn(ctx context.Context, sessionID, userMessage string, notify Notify) (string, error) {
	if err := Validate(sessionID, userMessage); err != nil {
		return "", err
	}
	if notify == nil {
		notify = func(Stage) {}
	}

	turnID := uuid.NewString()
	ctx = log.WithFields(ctx, "session_id", sessionID, "turn_id", turnID)
	ctx = core.WithSessionID(ctx, sessionID)
	logger := log.FromCtx(ctx)

	fail := func(stage Stage, err error) (string, error) {
		logger.Error().Err(err).Str("stage", string(stage)).Msg("turn failed")
		return "", fmt.Errorf("%w: %s: %w", core.ErrProcessing, stage, err)
	}

	notify(StageReceived)

	if _, err := m.sessions.Initialize(ctx, sessionID); err != nil {
		return fail(StageReceived, err)
	}

	userRow, err := m.log.AddMessage(ctx, sessionID, core.RoleUser, userMessage)
	if err != nil {
		return fail(StageReceived, err)
	}

	history, err := m.builder.Build(ctx, sessionID, userRow.ID, userMessage)
	if err != nil {
		return fail(StageContextBuilt, err)
	}
	notify(StageContextBuilt)

	reply, degraded, err := m.invoke(ctx, history)
	if err != nil {
		logger.Warn().Err(err).Msg("client went away, abandoning turn")
		return "", err
	}
	notify(StageModelInvoked)

	if _, err := m.log.AddMessage(ctx, sessionID, core.RoleAssistant, reply); err != nil {
		return fail(StageModelInvoked, err)
	}

	if !degraded {
		if err := m.extract(ctx, sessionID, userMessage, reply); err != nil {
			return fail(StageModelInvoked, err)
		}
	}

	if _, err := m.sessions.RecordTurn(ctx, sessionID); err != nil {
		return fail(StageModelInvoked, err)
	}
	notify(StagePersisted)

	if degraded {
		notify(StageDegraded)
	} else {
		notify(StageResponded)
	}

	logger.Debug().Bool("degraded", degraded).Int("context", len(history)).Msg("turn complete")
	return reply, nil
}

// invoke returns the fallback reply with degraded set on any model failure,
// unless the caller's own context is done.
func (m *Manager) invoke(ctx context.Context, history []core.Message) (string, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.modelTimeout)
	defer cancel()

	resp, err := m.ai.Chat(callCtx, history)
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = errors.New("empty model reply")
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		log.FromCtx(ctx).Error().Err(err).Str("stage", string(StageDegraded)).Msg("model call failed")
		return FallbackReply, true, nil
	}
	return resp.Content, false, nil
}

// extract saves a note when the extractor finds one. Extractor errors are
// logged and skipped; only storage errors are returned.
func (m *Manager) extract(ctx context.Context, sessionID, userMessage, reply string) error {
	if m.extractor == nil {
		return nil
	}

	note, err := m.extractor.Extract(ctx, userMessage, reply)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("knowledge extraction failed")
		return nil
	}
	if note == nil {
		return nil
	}

	note.SessionID = sessionID
	saved, err := m.notes.SaveNote(ctx, *note)
	if err != nil {
		return fmt.Errorf("save note: %w", err)
	}

	log.FromCtx(ctx).Info().Int64("note_id", saved.ID).Str("topic", saved.Topic).Msg("note saved")
	return nil
}

func (m *Manager) History(ctx context.Context, sessionID string, limit int) ([]core.StoredMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", core.ErrInvalidInput)
	}
	msgs, err := m.log.GetMessages(ctx, sessionID, m.clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: history: %w", core.ErrProcessing, err)
	}
	if msgs == nil {
		msgs = []core.StoredMessage{}
	}
	return msgs, nil
}

func (m *Manager) State(ctx context.Context, sessionID string) (core.SessionState, error) {
	if sessionID == "" {
		return core.SessionState{}, fmt.Errorf("%w: session id is required", core.ErrInvalidInput)
	}
	state, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return core.SessionState{}, fmt.Errorf("%w: state: %w", core.ErrProcessing, err)
	}
	return state, nil
}

func (m *Manager) Notes(ctx context.Context, sessionID string, limit int) ([]core.Note, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", core.ErrInvalidInput)
	}
	notes, err := m.notes.ListNotes(ctx, sessionID, m.clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: notes: %w", core.ErrProcessing, err)
	}
	if notes == nil {
		notes = []core.Note{}
	}
	return notes, nil
}

func (m *Manager) clampLimit(limit int) int {
	if limit <= 0 {
		return m.historyLimit
	}
	return min(limit, MaxHistoryLimit)
}
