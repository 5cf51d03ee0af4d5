package session

import (
	"context"
	"sync"

	"github.com/sandevgo/knowbot/internal/core"
)

// MemoryStore keeps state in process memory (STATE_BACKEND=memory). State
// is lost on restart while the message log survives.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]core.SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]core.SessionState)}
}

func (s *MemoryStore) GetState(_ context.Context, sessionID string) (core.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.states[sessionID]), nil
}

func (s *MemoryStore) SetState(_ context.Context, sessionID string, state core.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = cloneState(state)
	return nil
}

func cloneState(s core.SessionState) core.SessionState {
	if s.LastScheduledTask != nil {
		v := *s.LastScheduledTask
		s.LastScheduledTask = &v
	}
	return s
}
