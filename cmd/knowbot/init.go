package main

import (
	"fmt"
	"os"

	"github.com/sandevgo/knowbot/internal/config"
	"github.com/sandevgo/knowbot/pkg/env"
	"github.com/sandevgo/knowbot/pkg/log"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create the runtime directory and a .env with the current settings",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()
		logger := log.FromCtx(ctx)

		appCfg := config.NewAppConfig(ctx)
		llmCfg := config.NewLLMConfig(ctx)
		envPath := appCfg.GetEnvPath()

		if _, err := os.Stat(envPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", envPath)
		}

		if err := os.MkdirAll(appCfg.GetRuntimePath(), 0o755); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}

		content, err := env.MarshalEnv(appCfg, llmCfg)
		if err != nil {
			return fmt.Errorf("failed to render .env: %w", err)
		}

		// The file may hold API keys.
		if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", envPath, err)
		}

		logger.Info().Str("path", envPath).Msg("wrote configuration")
		logger.Info().Msg("You can now run 'knowbot serve' or 'knowbot chat'.")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing .env")
	rootCmd.AddCommand(initCmd)
}
