package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRepo_DefaultWhenAbsent(t *testing.T) {
	repo := NewStateRepo(newTestDB(t))

	state, err := repo.GetState(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, core.SessionState{}, state)
}

func TestStateRepo_SetOverwritesWholesale(t *testing.T) {
	ctx := context.Background()
	repo := NewStateRepo(newTestDB(t))

	swept := int64(42)
	require.NoError(t, repo.SetState(ctx, "s1", core.SessionState{Initialized: true, MessageCount: 3, LastScheduledTask: &swept}))
	require.NoError(t, repo.SetState(ctx, "s1", core.SessionState{Initialized: true, MessageCount: 4}))

	state, err := repo.GetState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, state.MessageCount)
	assert.Nil(t, state.LastScheduledTask)
}

func TestStateRepo_UpdateState(t *testing.T) {
	ctx := context.Background()
	repo := NewStateRepo(newTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateState(ctx, "s1", func(s *core.SessionState) {
				s.Initialized = true
				s.MessageCount++
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := repo.GetState(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, state.Initialized)
	assert.Equal(t, 20, state.MessageCount)
}
