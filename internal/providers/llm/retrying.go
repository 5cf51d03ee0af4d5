package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/pkg/log"
	"github.com/sandevgo/knowbot/pkg/retry"
)

// Retrying repeats failed calls that look transient: transport errors,
// 429 and 5xx. Other HTTP errors and caller cancellation fail immediately.
type Retrying struct {
	next    core.AIProvider
	retrier *retry.Retrier
}

func NewRetrying(next core.AIProvider, maxRetries int) *Retrying {
	cfg := retry.NewDefaultConfig()
	cfg.MaxRetries = maxRetries
	cfg.MaxDelay = 5 * time.Second
	return &Retrying{next: next, retrier: retry.NewRetrier(cfg)}
}

func (r *Retrying) Chat(ctx context.Context, history []core.Message) (core.Message, error) {
	var out core.Message
	attempt := 0

	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		attempt++
		msg, err := r.next.Chat(ctx, history)
		if err == nil {
			out = msg
			return nil
		}

		if ctx.Err() != nil {
			return retry.Permanent(err)
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return retry.Permanent(err)
		}

		log.FromCtx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("llm call failed")
		return err
	})
	if err != nil {
		return core.Message{}, err
	}
	return out, nil
}
