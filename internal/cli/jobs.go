package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"knograph/internal/jobs"
	"knograph/internal/models"
)

var jobsStatus string

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect pipeline jobs",
	Long: `List all pipeline jobs or inspect a specific job by ID.

Examples:
  knograph jobs                   # List all jobs
  knograph jobs --status FAILED   # List failed jobs
  knograph jobs abc123            # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (QUEUED, PROCESSING, COMPLETED, FAILED)")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showJob(ctx, args[0])
	}
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	var filter jobs.JobFilter
	if jobsStatus != "" {
		status := models.JobStatus(jobsStatus)
		filter.Status = &status
	}

	found, err := jobStore.FindJobs(ctx, filter)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(found) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-10s %-24s %-12s %-9s %-7s %s\n", "ID", "TYPE", "STATUS", "PROGRESS", "RETRIES", "CREATED")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, job := range found {
		fmt.Printf("%-10s %-24s %-12s %8d%% %7d %s\n",
			job.ID, job.Type, job.Status, job.Progress, job.RetryCount,
			job.CreatedAt.Format("15:04:05"))
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := jobStore.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", id)
	}

	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Type: %s\n", job.Type)
	if job.Stage != nil {
		fmt.Printf("  Stage: %s\n", *job.Stage)
	}
	fmt.Printf("  Status: %s\n", job.Status)
	fmt.Printf("  Progress: %d%%\n", job.Progress)
	if job.ParentJobID != nil {
		fmt.Printf("  Pipeline: %s\n", *job.ParentJobID)
	}
	fmt.Printf("  Retries: %d/%d\n", job.RetryCount, job.MaxRetries)
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.ScheduledFor != nil {
		fmt.Printf("  Scheduled for: %s\n", job.ScheduledFor.Format(time.RFC3339))
	}
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			fmt.Printf("  Duration: %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Second))
		}
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", *job.ErrorMessage)
	}

	if len(job.Result) > 0 {
		fmt.Println("\nResult:")
		for k, v := range job.Result {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
	if len(job.Metrics) > 0 {
		fmt.Println("\nMetrics:")
		for k, v := range job.Metrics {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}

	return nil
}
