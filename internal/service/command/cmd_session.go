package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sandevgo/knowbot/internal/core"
)

const defaultListLimit = 10

type Queries interface {
	History(ctx context.Context, sessionID string, limit int) ([]core.StoredMessage, error)
	State(ctx context.Context, sessionID string) (core.SessionState, error)
	Notes(ctx context.Context, sessionID string, limit int) ([]core.Note, error)
}

type stateCommand struct {
	q Queries
}

func (c *stateCommand) Name() string        { return "state" }
func (c *stateCommand) Description() string { return "Show this session's counters" }

func (c *stateCommand) Execute(ctx context.Context, sessionID string, _ []string) (string, error) {
	state, err := c.q.State(ctx, sessionID)
	if err != nil {
		return "", err
	}

	out := formatter.Info("Session") +
		formatter.Label("ID", sessionID) +
		formatter.Label("Initialized", strconv.FormatBool(state.Initialized)) +
		formatter.Label("Messages", strconv.Itoa(state.MessageCount)) +
		formatter.Label("Last interaction", formatMillis(state.LastInteraction))
	if state.LastScheduledTask != nil {
		out += formatter.Label("Last sweep", formatMillis(*state.LastScheduledTask))
	}
	return out, nil
}

type historyCommand struct {
	q Queries
}

func (c *historyCommand) Name() string        { return "history" }
func (c *historyCommand) Description() string { return "Show recent messages: /history [n]" }

func (c *historyCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	limit, err := parseLimit(args)
	if err != nil {
		return "", err
	}

	msgs, err := c.q.History(ctx, sessionID, limit)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return formatter.Info("History") + "No messages yet.\n", nil
	}

	items := make([]string, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, fmt.Sprintf("**%s** %s", m.Role, m.Content))
	}
	return formatter.Info("History") + formatter.List(items), nil
}

type notesCommand struct {
	q Queries
}

func (c *notesCommand) Name() string        { return "notes" }
func (c *notesCommand) Description() string { return "Show saved notes: /notes [n]" }

func (c *notesCommand) Execute(ctx context.Context, sessionID string, args []string) (string, error) {
	limit, err := parseLimit(args)
	if err != nil {
		return "", err
	}

	notes, err := c.q.Notes(ctx, sessionID, limit)
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return formatter.Info("Notes") + "Nothing saved yet. Ask me to remember something.\n", nil
	}

	items := make([]string, 0, len(notes))
	for _, n := range notes {
		items = append(items, fmt.Sprintf("**%s** %s", n.Topic, n.Content))
	}
	return formatter.Info("Notes") + formatter.List(items), nil
}

func parseLimit(args []string) (int, error) {
	if len(args) == 0 {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive number, got %q", args[0])
	}
	return n, nil
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
