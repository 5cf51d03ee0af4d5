package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KNOWBOT_RUNTIME_PATH", dir)

	cfg := NewAppConfig(context.Background())

	assert.Equal(t, dir, cfg.GetRuntimePath())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.GetContextWindowSize())
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, 100, cfg.RetentionKeep)
	assert.Equal(t, time.Hour, cfg.RetentionInterval)
	assert.Equal(t, 60*time.Second, cfg.GetModelTimeout())
	assert.Equal(t, StateBackendSQLite, cfg.StateBackend)
	assert.Equal(t, ExtractorKeyword, cfg.Extractor)
	assert.True(t, cfg.EnableHTTP)
	assert.False(t, cfg.EnableTelegram)
	assert.Equal(t, filepath.Join(dir, "knowbot.db"), cfg.GetDatabasePath())
	assert.Equal(t, filepath.Join(dir, "SYSTEM.md"), cfg.GetSystemPath())
}

func TestNewAppConfig_Overrides(t *testing.T) {
	t.Setenv("KNOWBOT_RUNTIME_PATH", t.TempDir())
	t.Setenv("CONTEXT_WINDOW_SIZE", "4")
	t.Setenv("RETENTION_INTERVAL", "0s")
	t.Setenv("STATE_BACKEND", "redis")

	cfg := NewAppConfig(context.Background())

	assert.Equal(t, 4, cfg.ContextWindowSize)
	assert.Zero(t, cfg.RetentionInterval)
	assert.Equal(t, StateBackendRedis, cfg.StateBackend)
}

func TestResolveRuntimePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, ".knowbot"), resolveRuntimePath(""))
	assert.Equal(t, filepath.Join(home, "bots/kb"), resolveRuntimePath("bots/kb"))
	assert.Equal(t, "/srv/kb", resolveRuntimePath("/srv/kb"))
}

func TestNewLLMConfig_Defaults(t *testing.T) {
	cfg := NewLLMConfig(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, ProviderDemo, cfg.Provider)
	assert.Equal(t, 2, cfg.MaxRetries)
}
