package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backfillLimit int

var backfillGeoCmd = &cobra.Command{
	Use:   "backfill-geo",
	Short: "Geocode entities persisted without coordinates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		filled, err := env.Orchestrator.BackfillGeocodes(ctx, backfillLimit)
		if err != nil {
			return err
		}

		zap.L().Info("geocode backfill finished", zap.Int("filled", filled))
		return nil
	},
}

func init() {
	backfillGeoCmd.Flags().IntVar(&backfillLimit, "limit", 100, "max entities to geocode")
	rootCmd.AddCommand(backfillGeoCmd)
}
