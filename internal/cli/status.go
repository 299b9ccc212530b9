package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"knograph/internal/jobs"
	"knograph/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status <pipeline-id>",
	Short: "Show the aggregate status of a pipeline run",
	Long: `Show the aggregate status of a pipeline run.

The pipeline ID is the parent job ID printed by 'knograph ingest'.

Example:
  knograph status 3fa85f64`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// stageOrder fixes the display order; map iteration would shuffle it.
var stageOrder = []models.Stage{
	models.StageExtraction,
	models.StageConcepts,
	models.StageDeduplication,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	coordinator := jobs.NewCoordinator(jobStore, nil, coordinatorConfig(), logger)

	status, err := coordinator.PipelineStatus(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Pipeline: %s\n", status.ParentJobID)
	fmt.Printf("  Status: %s\n", status.Status)
	fmt.Printf("  Created: %s\n", status.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Complete: %v\n", status.IsComplete)

	if len(status.Stages) == 0 {
		fmt.Println("\nNo stages yet")
		return nil
	}

	fmt.Println("\nStages:")
	for _, stage := range stageOrder {
		s, ok := status.Stages[stage]
		if !ok {
			continue
		}
		fmt.Printf("  %-14s %-11s %3d%%", stage, s.Status, s.Progress)
		if s.CompletedAt != nil && s.StartedAt != nil {
			fmt.Printf("  took %s", s.CompletedAt.Sub(*s.StartedAt).Round(time.Second))
		}
		fmt.Println()
		if verbose && len(s.Metrics) > 0 {
			for k, v := range s.Metrics {
				fmt.Printf("      %s: %v\n", k, v)
			}
		}
	}

	return nil
}
