package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-directory/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-enqueue failed and stale records",
	Long:  "Flips failed records and in-progress records older than the sweep age back to pending so the next batch retries them.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := store.NewPostgres(pool).Reenqueue(ctx, cfg.Ingest.SweepMaxAge)
		if err != nil {
			return err
		}

		zap.L().Info("sweep finished",
			zap.Int64("reenqueued", n),
			zap.Duration("max_age", cfg.Ingest.SweepMaxAge),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
