package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/knowbot/internal/config"
	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/internal/service/conversation"
	"github.com/sandevgo/knowbot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

type Conversation interface {
	HandleTurn(ctx context.Context, sessionID, userMessage string, notify conversation.Notify) (string, error)
}

type Bot struct {
	bot     *tele.Bot
	conv    Conversation
	router  core.CmdRouter
	sender  *sender
	ownerID int64
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	conv Conversation,
	router core.CmdRouter,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:     b,
		conv:    conv,
		router:  router,
		sender:  newSender(b),
		ownerID: cfg.OwnerID,
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Middleware: Only allow the owner
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != bot.ownerID {
				return nil // Ignore unauthorized users
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("starting telegram bot")

	if err := b.bot.SetCommands(botCommands(b.router.ListCommands())); err != nil {
		logger.Warn().Err(err).Msg("failed to register telegram commands")
	}

	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	sessionID := SessionID(c.Chat().ID)
	ctx = log.WithFields(ctx, "session_id", sessionID)
	logger := log.FromCtx(ctx)

	if out, ok := b.router.Execute(ctx, sessionID, c.Text()); ok {
		return b.sender.sendMarkdown(ctx, c.Chat(), out, false)
	}

	// Notify user we are working
	notify := func(stage conversation.Stage) {
		if stage == conversation.StageReceived {
			_ = c.Notify(tele.Typing)
		}
	}

	reply, err := b.conv.HandleTurn(ctx, sessionID, c.Text(), notify)
	if err != nil {
		logger.Error().Err(err).Msg("turn failed")
		return c.Send(userMessage(err))
	}

	return b.sender.sendMarkdown(ctx, c.Chat(), reply, false)
}

func SessionID(chatID int64) string {
	return fmt.Sprintf("telegram-%d", chatID)
}

func userMessage(err error) string {
	if errors.Is(err, core.ErrInvalidInput) {
		return err.Error()
	}
	return core.UserFacingError
}

func botCommands(cmds []core.Command) []tele.Command {
	out := make([]tele.Command, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, tele.Command{Text: cmd.Name(), Description: cmd.Description()})
	}
	return out
}
