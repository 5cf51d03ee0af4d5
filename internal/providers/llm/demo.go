package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/knowbot/internal/core"
)

type StateReader interface {
	Get(ctx context.Context, sessionID string) (core.SessionState, error)
}

// Demo answers from canned templates so the service works without any model
// credentials.
type Demo struct {
	state StateReader
}

func NewDemo(state StateReader) *Demo {
	return &Demo{state: state}
}

const helpReply = `I'm your AI knowledge assistant! I can:
- Answer questions using my knowledge base
- Remember important information you share
- Help organize and retrieve information
- Have conversations with context from our chat history

Try asking me to remember something, or ask me a question!`

func (d *Demo) Chat(ctx context.Context, history []core.Message) (core.Message, error) {
	if err := ctx.Err(); err != nil {
		return core.Message{}, err
	}

	var last string
	if n := len(history); n > 0 {
		last = history[n-1].Content
	}
	lower := strings.ToLower(last)

	var reply string
	switch {
	case strings.Contains(lower, "remember"):
		reply = "I'll remember that for you! I've saved it to my knowledge base so we can refer to it later in our conversations."
	case strings.Contains(lower, "what") || strings.Contains(lower, "tell me"):
		reply = "Based on our conversation history, I can help you with that. I remember our previous discussions. " +
			"Is there something specific you'd like to know more about?"
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		reply = fmt.Sprintf("Hello! I'm your AI knowledge assistant. "+
			"I'm here to help you organize information and answer questions. "+
			"We've had %d messages so far. What would you like to talk about?", d.messageCount(ctx))
	case strings.Contains(lower, "help"):
		reply = helpReply
	default:
		reply = fmt.Sprintf("I understand you said: %q. "+
			"With a language model configured I would give you a proper answer. "+
			"I'm keeping %d previous messages for context, and I have access to our conversation history and knowledge base.",
			last, priorMessages(history))
	}

	return core.Message{Role: core.RoleAssistant, Content: reply}, nil
}

func (d *Demo) messageCount(ctx context.Context) int {
	sessionID, ok := core.SessionIDFromCtx(ctx)
	if !ok || d.state == nil {
		return 0
	}
	state, err := d.state.Get(ctx, sessionID)
	if err != nil {
		return 0
	}
	return state.MessageCount
}

// priorMessages counts the non-system entries before the newest one.
func priorMessages(history []core.Message) int {
	n := 0
	for _, m := range history {
		if m.Role != core.RoleSystem {
			n++
		}
	}
	if n > 0 {
		n--
	}
	return n
}
