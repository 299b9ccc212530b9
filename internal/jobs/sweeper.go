package jobs

import (
	"context"
	"log/slog"
	"time"

	"knograph/internal/models"
	"knograph/internal/queue"
)

// DefaultSweepInterval is how often the sweeper scans for due jobs.
const DefaultSweepInterval = 30 * time.Second

// Sweeper is the recovery half of the write-then-schedule contract: jobs are
// durably QUEUED with a due time before any trigger is published, so a lost
// or failed publish leaves a row the sweeper finds and republishes. It makes
// delivery at-least-once rather than at-most-once.
type Sweeper struct {
	store    Store
	channel  queue.Channel
	target   string
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper publishing due triggers to target.
func NewSweeper(store Store, channel queue.Channel, target string, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, channel: channel, target: target, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.interval, "target", s.target)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep republishes triggers for every queued job whose due time has passed.
// Publish failures are logged and left for the next pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	queued := models.StatusQueued
	now := time.Now()
	due, err := s.store.FindJobs(ctx, JobFilter{Status: &queued, ScheduledBefore: &now})
	if err != nil {
		s.logger.Error("sweep query failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Info("republishing due jobs", "count", len(due))
	for _, job := range due {
		if err := s.channel.Publish(ctx, s.target, queue.Trigger{JobID: job.ID}, 0); err != nil {
			s.logger.Warn("failed to republish job trigger", "job_id", job.ID, "error", err)
		}
	}
}
