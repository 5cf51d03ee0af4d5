package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:          "sweep",
	Short:        "Trim every session's message log once and exit",
	Long:         `Runs one retention pass, keeping the newest RETENTION_KEEP messages per session. Meant for cron and other external schedulers.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.WithoutCancel(ctx))

		report, err := a.sweeper().Sweep(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "sessions: %d, deleted: %d, failed: %d\n",
			report.Sessions, report.Deleted, report.Failed)
		return err
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
