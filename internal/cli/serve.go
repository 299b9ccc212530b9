package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"knograph/internal/jobs"
	"knograph/internal/metrics"
	"knograph/internal/queue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline worker",
	Long: `Run the pipeline worker that processes queued jobs.

With a broker configured (KNOGRAPH_AMQP_URL), triggers are consumed from
the jobs queue on a bounded worker pool. Without one, an in-process
channel delivers triggers instead; jobs created by other processes are
picked up by the periodic sweep.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	router, collector, err := buildRouter()
	if err != nil {
		return err
	}
	defer logStats(collector)

	broker, err := dialBroker()
	if err != nil {
		return err
	}

	var channel queue.Channel
	var memory *queue.MemoryChannel
	if broker != nil {
		channel = broker
		defer broker.Close()
	} else {
		memory = queue.NewMemoryChannel(logger)
		channel = memory
		defer memory.Close()
	}
	channel = &queue.InstrumentedChannel{Inner: channel, Collector: collector}

	coordinator := jobs.NewCoordinator(jobStore, channel, coordinatorConfig(), logger)
	handle := func(ctx context.Context, trig queue.Trigger) error {
		return coordinator.Dispatch(ctx, router, trig.JobID)
	}

	sweeper := jobs.NewSweeper(jobStore, channel, cfg.JobsTarget, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)

	logger.Info("worker starting",
		"version", Version,
		"target", cfg.JobsTarget,
		"workers", cfg.Workers,
		"dedup_enabled", cfg.DedupEnabled,
	)

	if broker == nil {
		// In-process delivery: triggers published by this process run
		// directly; everything else arrives through the sweeper.
		memory.Subscribe(cfg.JobsTarget, handle)
		<-ctx.Done()
		logger.Info("shutdown complete")
		return nil
	}

	consumer, err := queue.NewConsumer(broker, cfg.Workers, handle, logger)
	if err != nil {
		return err
	}
	defer consumer.Release()

	if err := consumer.Run(ctx, cfg.JobsTarget); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// logStats emits the runtime statistics gathered over the worker's lifetime.
func logStats(collector *metrics.Collector) {
	snap := collector.Snapshot()
	logger.Info("runtime statistics", "uptime_s", snap.UptimeSeconds)
	logOpStats(metrics.OpExtraction, snap.Extraction)
	logOpStats(metrics.OpConcepts, snap.Concepts)
	logOpStats(metrics.OpDedup, snap.Dedup)
	logOpStats(metrics.OpLLMGenerate, snap.LLMGenerate)
	logOpStats(metrics.OpDBQuery, snap.DBQuery)
	logOpStats(metrics.OpPublish, snap.Publish)
}

func logOpStats(op string, s *metrics.OperationSnapshot) {
	if s == nil {
		return
	}
	attrs := []any{
		"op", op,
		"count", s.Count,
		"avg_ms", s.AvgTimeMs,
		"min_ms", s.MinTimeMs,
		"max_ms", s.MaxTimeMs,
	}
	if s.TotalTriples != nil {
		attrs = append(attrs, "triples", *s.TotalTriples)
	}
	logger.Info("operation statistics", attrs...)
}
