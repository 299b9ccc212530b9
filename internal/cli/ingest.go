package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"knograph/internal/jobs"
	"knograph/internal/models"
)

var (
	ingestSource   string
	ingestAICalls  int
	ingestDBConns  int
	ingestMemoryMB int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Start a knowledge-processing pipeline for a text",
	Long: `Start a knowledge-processing pipeline for a text.

Reads the text from the given file, or from stdin when no file is given.
The pipeline runs asynchronously: a worker started with 'knograph serve'
picks the jobs up. Without a broker configured, the jobs stay queued
until a worker's periodic sweep finds them.

Examples:
  knograph ingest notes/meeting.md
  cat article.txt | knograph ingest --source article.txt
  knograph ingest notes/big.md --max-ai-calls 8 --max-memory-mb 4096`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestSource, "source", "s", "", "source label for the ingested text (defaults to the file name)")
	ingestCmd.Flags().IntVar(&ingestAICalls, "max-ai-calls", 0, "override concurrent AI call limit for this pipeline")
	ingestCmd.Flags().IntVar(&ingestDBConns, "max-db-connections", 0, "override concurrent database connection limit")
	ingestCmd.Flags().IntVar(&ingestMemoryMB, "max-memory-mb", 0, "override memory budget in MB")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	var text, source string
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read input file: %w", err)
		}
		text = string(data)
		source = filepath.Base(args[0])
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
		source = "stdin"
	}
	if ingestSource != "" {
		source = ingestSource
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("input text is empty")
	}

	var limits *models.ResourceLimits
	if ingestAICalls > 0 || ingestDBConns > 0 || ingestMemoryMB > 0 {
		l := models.DefaultResourceLimits()
		if ingestAICalls > 0 {
			l.MaxAICalls = ingestAICalls
		}
		if ingestDBConns > 0 {
			l.MaxConnections = ingestDBConns
		}
		if ingestMemoryMB > 0 {
			l.MaxMemoryMB = ingestMemoryMB
		}
		limits = &l
	}

	broker, err := dialBroker()
	if err != nil {
		return err
	}
	if broker != nil {
		defer broker.Close()
	}

	ctx := context.Background()
	coordinator := jobs.NewCoordinator(jobStore, brokerChannel(broker), coordinatorConfig(), logger)
	parent, child, err := coordinator.InitiatePipeline(ctx, jobs.PipelineRequest{
		Text:   text,
		Source: source,
		Limits: limits,
	})
	if err != nil {
		return fmt.Errorf("initiate pipeline: %w", err)
	}

	fmt.Printf("Pipeline started: %s\n", parent.ID)
	fmt.Printf("  Source: %s\n", source)
	fmt.Printf("  Extraction job: %s\n", child.ID)
	if broker == nil {
		fmt.Println("  No broker configured; a running worker will pick the job up on its next sweep.")
	}
	return nil
}
