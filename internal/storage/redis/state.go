// Package redis keeps session state in Redis so several knowbot processes
// can share it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sandevgo/knowbot/internal/config"
	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/pkg/log"
)

const maxTxAttempts = 10

var ErrTooManyConflicts = errors.New("redis: state update kept conflicting")

// StateStore stores each core.SessionState as a JSON string under
// "{prefix}:state:{sessionID}".
type StateStore struct {
	client goredis.UniversalClient
	prefix string
}

func NewClient(cfg *config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewStateStore(client goredis.UniversalClient, prefix string) *StateStore {
	if prefix == "" {
		prefix = "knowbot"
	}
	return &StateStore{client: client, prefix: prefix}
}

func (s *StateStore) key(sessionID string) string {
	return fmt.Sprintf("%s:state:%s", s.prefix, sessionID)
}

func (s *StateStore) GetState(ctx context.Context, sessionID string) (core.SessionState, error) {
	return getState(ctx, s.client, s.key(sessionID))
}

func (s *StateStore) SetState(ctx context.Context, sessionID string, state core.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// UpdateState is an optimistic WATCH/MULTI read-modify-write, retried when
// another writer touches the key in between.
func (s *StateStore) UpdateState(ctx context.Context, sessionID string, fn func(*core.SessionState)) (core.SessionState, error) {
	key := s.key(sessionID)
	var result core.SessionState

	txf := func(tx *goredis.Tx) error {
		state, err := getState(ctx, tx, key)
		if err != nil {
			return err
		}

		fn(&state)

		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			result = state
		}
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, goredis.TxFailedErr) {
			return core.SessionState{}, fmt.Errorf("failed to update state: %w", err)
		}
		log.FromCtx(ctx).Debug().
			Str("session_id", sessionID).
			Int("attempt", attempt+1).
			Msg("state update conflicted, retrying")
	}

	return core.SessionState{}, ErrTooManyConflicts
}

func (s *StateStore) Close() error {
	return s.client.Close()
}

func getState(ctx context.Context, c goredis.Cmdable, key string) (core.SessionState, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return core.SessionState{}, nil
	}
	if err != nil {
		return core.SessionState{}, fmt.Errorf("failed to read state: %w", err)
	}

	var state core.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return core.SessionState{}, fmt.Errorf("failed to decode state: %w", err)
	}
	return state, nil
}
