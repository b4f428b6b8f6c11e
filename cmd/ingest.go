package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process pending scraped records",
	Long:  "Claims pending records under Redis leases and runs each through extraction, identity resolution, merge, and persistence.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Orchestrator.RunBatch(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("batch finished",
			zap.Int("total", stats.Total()),
			zap.Int("completed", stats.Completed),
			zap.Int("skipped", stats.Skipped),
			zap.Int("paused", stats.Paused),
			zap.Int("failed", stats.Failed),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
