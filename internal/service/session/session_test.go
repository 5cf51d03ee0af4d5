package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(store Store, now time.Time) *Manager {
	m := NewManager(store)
	m.now = func() time.Time { return now }
	return m
}

func TestManager_GetDefault(t *testing.T) {
	m := NewManager(NewMemoryStore())

	state, err := m.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, state.Initialized)
	assert.Zero(t, state.MessageCount)
}

func TestManager_SetIsVerbatim(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	want := core.SessionState{Initialized: true, MessageCount: 7, LastInteraction: 99}
	require.NoError(t, m.Set(ctx, "s1", want))

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestManager_InitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	m := newTestManager(NewMemoryStore(), now)

	state, err := m.Initialize(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.SessionState{Initialized: true, LastInteraction: now.UnixMilli()}, state)

	_, err = m.RecordTurn(ctx, "s1")
	require.NoError(t, err)

	m.now = func() time.Time { return now.Add(time.Hour) }
	state, err = m.Initialize(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.MessageCount)
	assert.Equal(t, now.UnixMilli(), state.LastInteraction)
}

func TestManager_RecordTurnPreservesOtherFields(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(2_000)
	m := newTestManager(NewMemoryStore(), now)

	swept := int64(500)
	require.NoError(t, m.Set(ctx, "s1", core.SessionState{Initialized: true, MessageCount: 5, LastScheduledTask: &swept}))

	state, err := m.RecordTurn(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 6, state.MessageCount)
	assert.Equal(t, int64(2_000), state.LastInteraction)
	require.NotNil(t, state.LastScheduledTask)
	assert.Equal(t, int64(500), *state.LastScheduledTask)
}

func TestManager_MarkSwept(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(3_000)
	m := newTestManager(NewMemoryStore(), now)
	require.NoError(t, m.Set(ctx, "s1", core.SessionState{Initialized: true, MessageCount: 2, LastInteraction: 10}))

	state, err := m.MarkSwept(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, state.LastScheduledTask)
	assert.Equal(t, int64(3_000), *state.LastScheduledTask)
	assert.Equal(t, 2, state.MessageCount)
	assert.Equal(t, int64(10), state.LastInteraction)
}

func TestManager_ConcurrentRecordTurnIsSerialized(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.RecordTurn(ctx, "s1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 50, state.MessageCount)
}

type updaterStore struct {
	*MemoryStore
	calls int
}

func (u *updaterStore) UpdateState(ctx context.Context, sessionID string, fn func(*core.SessionState)) (core.SessionState, error) {
	u.calls++
	s, _ := u.GetState(ctx, sessionID)
	fn(&s)
	return s, u.SetState(ctx, sessionID, s)
}

func TestManager_UsesStoreUpdater(t *testing.T) {
	store := &updaterStore{MemoryStore: NewMemoryStore()}
	m := NewManager(store)

	_, err := m.RecordTurn(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
}

type failingStore struct{ *MemoryStore }

func (f *failingStore) SetState(context.Context, string, core.SessionState) error {
	return errors.New("disk full")
}

func TestManager_StoreErrorsAreWrapped(t *testing.T) {
	m := NewManager(&failingStore{MemoryStore: NewMemoryStore()})

	_, err := m.RecordTurn(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
