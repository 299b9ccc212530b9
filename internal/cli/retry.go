package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"knograph/internal/jobs"
	"knograph/internal/models"
)

var retryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Retry a failed job",
	Long: `Retry a failed job.

Only FAILED jobs with retries remaining are eligible; anything else is
rejected without changing the job. The job runs in this process.

Example:
  knograph retry abc123`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := args[0]

	router, _, err := buildRouter()
	if err != nil {
		return err
	}
	broker, err := dialBroker()
	if err != nil {
		return err
	}
	if broker != nil {
		defer broker.Close()
	}
	coordinator := jobs.NewCoordinator(jobStore, brokerChannel(broker), coordinatorConfig(), logger)

	job, err := jobStore.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", id)
	}

	res := router.Retry(ctx, id)
	if !res.Success {
		return fmt.Errorf("retry failed: %w", res.Error)
	}

	// A retried extraction still owes the pipeline its follow-up stages.
	if job.Type == models.JobTypeExtractBatch && job.ParentJobID != nil {
		metrics := models.MetricsFromResult(res.Data)
		if err := coordinator.SchedulePostProcessing(ctx, *job.ParentJobID, metrics); err != nil {
			logger.Warn("failed to schedule post-processing stages",
				"parent_job_id", *job.ParentJobID, "error", err)
		}
	}
	if job.ParentJobID != nil {
		if err := coordinator.FinalizePipeline(ctx, *job.ParentJobID); err != nil {
			logger.Warn("failed to finalize pipeline",
				"parent_job_id", *job.ParentJobID, "error", err)
		}
	}

	fmt.Printf("Job %s retried successfully\n", id)
	for k, v := range res.Data {
		fmt.Printf("  %s: %v\n", k, v)
	}
	return nil
}
