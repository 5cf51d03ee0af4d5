package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/knowbot/internal/config"
	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/pkg/log"
)

// NewProvider creates the appropriate AIProvider based on configuration.
// state is only used by the demo provider.
func NewProvider(ctx context.Context, cfg *config.LLMConfig, state StateReader) (core.AIProvider, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Msg("starting llm provider")

	var p core.AIProvider
	switch cfg.Provider {
	case config.ProviderDemo, "":
		return NewDemo(state), nil
	case config.ProviderOpenAI:
		p = NewOpenAI(cfg.OpenAIKey, cfg.Model)
	case config.ProviderAnthropic:
		p = NewAnthropic(cfg.AnthropicKey, cfg.Model)
	case config.ProviderOpenRouter:
		p = NewOpenRouter(cfg.OpenRouterKey, cfg.Model)
	case config.ProviderOllama:
		p = NewOllama(cfg.OllamaBaseURL, cfg.Model)
	case config.ProviderWorkersAI:
		p = NewWorkersAI(cfg.WorkersAIAccountID, cfg.WorkersAIToken, cfg.Model)
	case config.ProviderCustom:
		p = NewCustomOpenAI(cfg.CustomBaseURL, cfg.CustomKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}

	if cfg.MaxRetries > 0 {
		p = NewRetrying(p, cfg.MaxRetries)
	}
	return p, nil
}
