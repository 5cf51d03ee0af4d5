package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/knowbot/pkg/log"
)

const (
	StateBackendSQLite = "sqlite"
	StateBackendRedis  = "redis"
	StateBackendMemory = "memory"

	ExtractorKeyword = "keyword"
	ExtractorLLM     = "llm"
)

type AppConfig struct {
	RuntimePath string `env:"KNOWBOT_RUNTIME_PATH" envDefault:".knowbot"`
	HTTPAddr    string `env:"KNOWBOT_HTTP_ADDR" envDefault:":8080"`

	// Transport Flags
	EnableHTTP     bool `env:"ENABLE_HTTP" envDefault:"true"`
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`

	// Context Management
	ContextWindowSize  int `env:"CONTEXT_WINDOW_SIZE" envDefault:"10"`
	ContextTokenBudget int `env:"CONTEXT_TOKEN_BUDGET" envDefault:"0"`
	HistoryLimit       int `env:"HISTORY_LIMIT" envDefault:"20"`

	// Retention
	RetentionKeep     int           `env:"RETENTION_KEEP" envDefault:"100"`
	RetentionInterval time.Duration `env:"RETENTION_INTERVAL" envDefault:"1h"`

	ModelTimeout time.Duration `env:"MODEL_TIMEOUT" envDefault:"60s"`
	StateBackend string        `env:"STATE_BACKEND" envDefault:"sqlite"`
	Extractor    string        `env:"EXTRACTOR" envDefault:"keyword"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	c.RuntimePath = resolveRuntimePath(c.RuntimePath)
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetSystemPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "knowbot.db")
}

func (c AppConfig) GetEnvPath() string {
	return filepath.Join(c.RuntimePath, ".env")
}

func (c AppConfig) GetContextWindowSize() int {
	return c.ContextWindowSize
}

func (c AppConfig) GetModelTimeout() time.Duration {
	return c.ModelTimeout
}
