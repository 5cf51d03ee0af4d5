package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/knowbot/pkg/log"
	"github.com/sandevgo/knowbot/pkg/srv"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP, WebSocket and Telegram services",
	Long:  `Starts every enabled transport and the background retention sweeper, then waits for SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// logger setup
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting knowbot")

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		services, err := a.services(ctx)
		if err != nil {
			a.close(ctx)
			return err
		}

		// Start services
		srv.StartServices(ctx, services)

		// Wait for shutdown signal
		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("knowbot has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
