package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sandevgo/knowbot/internal/transport/cli"
	"github.com/spf13/cobra"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:          "chat",
	Short:        "Chat with knowbot in the terminal",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.WithoutCancel(ctx))

		rl, err := cli.NewReadLine(a.conv, a.router, a.cfg.GetRuntimePath(), chatSession)
		if err != nil {
			return err
		}
		defer rl.Shutdown(ctx)

		return rl.Start(ctx)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", cli.DefaultSessionID, "session to chat in")
	rootCmd.AddCommand(chatCmd)
}
