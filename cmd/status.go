package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/provider-directory/internal/model"
	"github.com/sells-group/provider-directory/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show record counts per lifecycle status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		counts, err := store.NewPostgres(pool).CountByStatus(ctx)
		if err != nil {
			return err
		}

		cmd.Print(formatStatusCounts(counts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusOrder = []model.RecordStatus{
	model.StatusPending,
	model.StatusInProgress,
	model.StatusPausedIntervention,
	model.StatusCompleted,
	model.StatusFailed,
}

func formatStatusCounts(counts map[model.RecordStatus]int64) string {
	var sb strings.Builder
	var total int64
	for _, s := range statusOrder {
		fmt.Fprintf(&sb, "%-22s %d\n", s, counts[s])
		total += counts[s]
	}
	fmt.Fprintf(&sb, "%-22s %d\n", "total", total)
	return sb.String()
}
