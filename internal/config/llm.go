package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/knowbot/pkg/log"
)

const (
	ProviderDemo       = "demo"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderWorkersAI  = "workersai"
	ProviderCustom     = "custom"
)

type LLMConfig struct {
	Provider   string `env:"LLM_PROVIDER" envDefault:"demo"`
	Model      string `env:"LLM_MODEL"`
	MaxRetries int    `env:"LLM_MAX_RETRIES" envDefault:"2"`

	OpenAIKey     string `env:"OPENAI_API_KEY"`
	AnthropicKey  string `env:"ANTHROPIC_API_KEY"`
	OpenRouterKey string `env:"OPENROUTER_API_KEY"`
	OllamaBaseURL string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434/v1"`

	WorkersAIAccountID string `env:"WORKERSAI_ACCOUNT_ID"`
	WorkersAIToken     string `env:"WORKERSAI_API_TOKEN"`

	CustomBaseURL string `env:"CUSTOM_BASE_URL"`
	CustomKey     string `env:"CUSTOM_API_KEY"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}
