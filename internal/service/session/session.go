// Package session owns the per-session state record. Every read-modify-write
// for a session is serialized; different sessions never wait on each other.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/pkg/keymutex"
)

type Store interface {
	// GetState returns the zero state when the session has none yet.
	GetState(ctx context.Context, sessionID string) (core.SessionState, error)
	SetState(ctx context.Context, sessionID string, state core.SessionState) error
}

// Updater is implemented by stores that can read-modify-write atomically.
type Updater interface {
	UpdateState(ctx context.Context, sessionID string, fn func(*core.SessionState)) (core.SessionState, error)
}

type Manager struct {
	store Store
	locks *keymutex.KeyMutex
	now   func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		locks: keymutex.New(),
		now:   time.Now,
	}
}

func (m *Manager) Get(ctx context.Context, sessionID string) (core.SessionState, error) {
	state, err := m.store.GetState(ctx, sessionID)
	if err != nil {
		return core.SessionState{}, fmt.Errorf("get session state: %w", err)
	}
	return state, nil
}

// Set overwrites the whole record.
func (m *Manager) Set(ctx context.Context, sessionID string, state core.SessionState) error {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	if err := m.store.SetState(ctx, sessionID, state); err != nil {
		return fmt.Errorf("set session state: %w", err)
	}
	return nil
}

func (m *Manager) Update(ctx context.Context, sessionID string, fn func(*core.SessionState)) (core.SessionState, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	if u, ok := m.store.(Updater); ok {
		state, err := u.UpdateState(ctx, sessionID, fn)
		if err != nil {
			return core.SessionState{}, fmt.Errorf("update session state: %w", err)
		}
		return state, nil
	}

	state, err := m.store.GetState(ctx, sessionID)
	if err != nil {
		return core.SessionState{}, fmt.Errorf("get session state: %w", err)
	}
	fn(&state)
	if err := m.store.SetState(ctx, sessionID, state); err != nil {
		return core.SessionState{}, fmt.Errorf("set session state: %w", err)
	}
	return state, nil
}

// Initialize marks the session initialized once. Later calls leave the
// counters alone.
func (m *Manager) Initialize(ctx context.Context, sessionID string) (core.SessionState, error) {
	now := m.now().UnixMilli()
	return m.Update(ctx, sessionID, func(s *core.SessionState) {
		if s.Initialized {
			return
		}
		s.Initialized = true
		s.MessageCount = 0
		s.LastInteraction = now
	})
}

// RecordTurn counts one completed user turn.
func (m *Manager) RecordTurn(ctx context.Context, sessionID string) (core.SessionState, error) {
	now := m.now().UnixMilli()
	return m.Update(ctx, sessionID, func(s *core.SessionState) {
		s.MessageCount++
		s.LastInteraction = now
	})
}

func (m *Manager) MarkSwept(ctx context.Context, sessionID string) (core.SessionState, error) {
	now := m.now().UnixMilli()
	return m.Update(ctx, sessionID, func(s *core.SessionState) {
		s.LastScheduledTask = &now
	})
}
