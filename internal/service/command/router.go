// Package command implements the slash commands shared by the chat
// transports (/state, /history, /notes, /help).
package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/pkg/log"
)

type Router struct {
	commands map[string]core.Command
}

func New(commands []core.Command) *Router {
	c := &Router{
		commands: make(map[string]core.Command),
	}

	for _, cmd := range commands {
		c.commands[cmd.Name()] = cmd
	}
	c.commands["help"] = &helpCommand{router: c}
	return c
}

// Execute runs input when it is a slash command. The bool is false for plain
// chat text, which the caller should send to the conversation instead.
func (c *Router) Execute(ctx context.Context, sessionID, input string) (string, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.Fields(input)
	name := strings.TrimPrefix(parts[0], "/")
	// Telegram appends the bot name in groups: /state@knowbot
	name, _, _ = strings.Cut(name, "@")
	args := parts[1:]

	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command: /%s. Try /help.", name), true
	}

	result, err := cmd.Execute(ctx, sessionID, args)
	if errors.Is(err, core.ErrProcessing) {
		log.FromCtx(ctx).Error().Err(err).Str("command", name).Msg("command failed")
		return formatter.Error(errors.New(core.UserFacingError)), true
	}
	if err != nil {
		return formatter.Error(err), true
	}
	return result, true
}

func (c *Router) ListCommands() []core.Command {
	res := make([]core.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		res = append(res, cmd)
	}
	slices.SortFunc(res, func(a, b core.Command) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return res
}

type helpCommand struct {
	router *Router
}

func (h *helpCommand) Name() string        { return "help" }
func (h *helpCommand) Description() string { return "List available commands" }

func (h *helpCommand) Execute(context.Context, string, []string) (string, error) {
	items := make([]string, 0, len(h.router.commands))
	for _, cmd := range h.router.ListCommands() {
		items = append(items, fmt.Sprintf("`/%s` %s", cmd.Name(), cmd.Description()))
	}
	return formatter.Info("Commands") + formatter.List(items), nil
}
