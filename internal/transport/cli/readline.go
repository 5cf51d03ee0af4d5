package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/internal/service/conversation"
	"github.com/sandevgo/knowbot/internal/service/ui"
	"github.com/sandevgo/knowbot/pkg/log"
)

const DefaultSessionID = "cli-local"

type Conversation interface {
	HandleTurn(ctx context.Context, sessionID, userMessage string, notify conversation.Notify) (string, error)
}

type lineReader interface {
	Readline() (string, error)
}

type ReadLine struct {
	conv      Conversation
	router    core.CmdRouter
	sessionID string
	in        lineReader
	out       io.Writer
	closer    io.Closer
}

func NewReadLine(conv Conversation, router core.CmdRouter, runtimePath, sessionID string) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(runtimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(runtimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return newReadLine(conv, router, sessionID, rl, rl.Stdout(), rl), nil
}

func newReadLine(conv Conversation, router core.CmdRouter, sessionID string, in lineReader, out io.Writer, closer io.Closer) *ReadLine {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	return &ReadLine{
		conv:      conv,
		router:    router,
		sessionID: sessionID,
		in:        in,
		out:       out,
		closer:    closer,
	}
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Str("session_id", r.sessionID).Msg("chat started. Type 'exit' to quit.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.in.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if out, ok := r.router.Execute(ctx, r.sessionID, line); ok {
			fmt.Fprintln(r.out, out)
			continue
		}

		notify := func(stage conversation.Stage) {
			if stage == conversation.StageReceived {
				fmt.Fprintln(r.out, ui.DescStyle.Render("thinking..."))
			}
		}

		reply, err := r.conv.HandleTurn(ctx, r.sessionID, line, notify)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error().Err(err).Msg("turn failed")
			msg := core.UserFacingError
			if errors.Is(err, core.ErrInvalidInput) {
				msg = err.Error()
			}
			fmt.Fprintln(r.out, ui.ErrorStyle.Render(msg))
			continue
		}

		fmt.Fprintln(r.out, ui.ReplyStyle.Render(reply))
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
