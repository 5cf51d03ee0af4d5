package memory

import (
	"context"
	"fmt"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/pkg/log"
)

const DefaultWindowSize = 10

// messageOverhead roughly covers the role and separators each chat message
// adds on top of its content.
const messageOverhead = 4

type HistoryReader interface {
	GetMessagesBefore(ctx context.Context, sessionID string, beforeID int64, limit int) ([]core.StoredMessage, error)
}

type ContextBuilder struct {
	repo     HistoryReader
	prompter *SysPrompt
	window   int
	budget   int
	counter  core.TokenCounter
}

type ContextOption func(*ContextBuilder)

// WithTokenBudget drops the oldest history entries until the whole context
// fits in budget tokens. The system and new user messages are always kept.
func WithTokenBudget(budget int, counter core.TokenCounter) ContextOption {
	return func(b *ContextBuilder) {
		if budget > 0 && counter != nil {
			b.budget = budget
			b.counter = counter
		}
	}
}

func NewContextBuilder(repo HistoryReader, prompter *SysPrompt, window int, opts ...ContextOption) *ContextBuilder {
	if window <= 0 {
		window = DefaultWindowSize
	}
	b := &ContextBuilder{
		repo:     repo,
		prompter: prompter,
		window:   window,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles the model input: the system message, up to window prior
// messages with id < beforeID in chronological order, then userMessage.
func (b *ContextBuilder) Build(ctx context.Context, sessionID string, beforeID int64, userMessage string) ([]core.Message, error) {
	history, err := b.repo.GetMessagesBefore(ctx, sessionID, beforeID, b.window)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	system := b.prompter.Build()
	user := core.Message{Role: core.RoleUser, Content: userMessage}

	if b.budget > 0 {
		history = b.fitBudget(ctx, system, user, history)
	}

	messages := make([]core.Message, 0, len(history)+2)
	messages = append(messages, system)
	for _, m := range history {
		messages = append(messages, m.AsMessage())
	}
	messages = append(messages, user)

	return messages, nil
}

func (b *ContextBuilder) fitBudget(ctx context.Context, system, user core.Message, history []core.StoredMessage) []core.StoredMessage {
	cost := func(content string) int { return b.counter.Count(content) + messageOverhead }

	total := cost(system.Content) + cost(user.Content)
	for _, m := range history {
		total += cost(m.Content)
	}

	dropped := 0
	for len(history) > 0 && total > b.budget {
		total -= cost(history[0].Content)
		history = history[1:]
		dropped++
	}

	if dropped > 0 {
		log.FromCtx(ctx).Debug().
			Int("dropped", dropped).
			Int("tokens", total).
			Int("budget", b.budget).
			Msg("trimmed history to token budget")
	}
	return history
}
