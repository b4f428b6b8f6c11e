package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/provider-directory/internal/model"
)

var interveneCmd = &cobra.Command{
	Use:   "intervene",
	Short: "Review and resolve ambiguous identity matches",
}

var interveneListLimit int

var interveneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records paused for human review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := env.Records.ListByStatus(ctx, model.StatusPausedIntervention, interveneListLimit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			cmd.Println("no records awaiting intervention")
			return nil
		}
		for _, rec := range recs {
			cmd.Print(formatIntervention(&rec))
		}
		return nil
	},
}

var (
	interveneEntityID int64
	interveneCreate   bool
)

var interveneApplyCmd = &cobra.Command{
	Use:   "apply <record-id>",
	Short: "Resolve a paused record",
	Long:  "Links the record to the chosen candidate entity, or creates a new entity with --create.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		recordID := args[0]

		if interveneCreate == (interveneEntityID != 0) {
			return eris.New("pass exactly one of --entity or --create")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orchestrator.ApplyIntervention(ctx, recordID, interveneEntityID, interveneCreate); err != nil {
			return err
		}

		zap.L().Info("intervention applied",
			zap.String("record_id", recordID),
			zap.Int64("entity_id", interveneEntityID),
			zap.Bool("created", interveneCreate),
		)
		return nil
	},
}

func init() {
	interveneListCmd.Flags().IntVar(&interveneListLimit, "limit", 50, "max records to list")
	interveneApplyCmd.Flags().Int64Var(&interveneEntityID, "entity", 0, "candidate entity id to link")
	interveneApplyCmd.Flags().BoolVar(&interveneCreate, "create", false, "create a new entity instead of linking")
	interveneCmd.AddCommand(interveneListCmd)
	interveneCmd.AddCommand(interveneApplyCmd)
	rootCmd.AddCommand(interveneCmd)
}

// formatIntervention renders one paused record with its stored candidate
// scores so a reviewer can decide without re-running matching.
func formatIntervention(rec *model.ScrapedRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "record %s  (%s)\n", rec.ID, rec.SourceURL)
	if rec.InterventionReason != "" {
		fmt.Fprintf(&sb, "  reason: %s\n", rec.InterventionReason)
	}
	for _, id := range rec.CandidateEntityIDs {
		fmt.Fprintf(&sb, "  candidate entity %d  score %.1f\n", id, rec.MatchScores[id])
	}
	return sb.String()
}
