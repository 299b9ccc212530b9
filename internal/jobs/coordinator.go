package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"knograph/internal/models"
	"knograph/internal/queue"
)

// Bounds for the post-extraction scheduling delay, in seconds.
const (
	minProcessingDelaySec = 6
	maxProcessingDelaySec = 60

	minConceptsDelay = 6 * time.Second
	minDedupDelay    = 10 * time.Second
)

// CoordinatorConfig tunes pipeline creation and scheduling.
type CoordinatorConfig struct {
	// TriggerTarget is the delivery channel target jobs are published to.
	TriggerTarget string
	// DedupEnabled gates whether a DEDUPLICATE_KNOWLEDGE stage is ever
	// scheduled.
	DedupEnabled bool
	// MaxRetries is attached to every created job.
	MaxRetries int
}

// Coordinator creates the parent/child job tree, schedules follow-up stages
// with computed delays, and aggregates pipeline-wide status. A nil delivery
// channel is a degraded but valid configuration: jobs stay QUEUED for the
// sweeper or manual dispatch.
type Coordinator struct {
	store   Store
	channel queue.Channel
	cfg     CoordinatorConfig
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator. channel may be nil.
func NewCoordinator(store Store, channel queue.Channel, cfg CoordinatorConfig, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.TriggerTarget == "" {
		cfg.TriggerTarget = "knograph.jobs"
	}
	return &Coordinator{store: store, channel: channel, cfg: cfg, logger: logger}
}

func newJobID() string {
	// Short IDs for log and CLI convenience.
	return uuid.New().String()[:8]
}

// PipelineRequest starts a knowledge-processing run.
type PipelineRequest struct {
	Text   string
	Source string
	// Limits overrides the default per-job resource limits when non-nil.
	Limits *models.ResourceLimits
}

// InitiatePipeline creates the parent PROCESS_KNOWLEDGE job and its
// EXTRACTION child, then requests asynchronous delivery of the child's
// trigger. The child is durably written before the publish ("write then
// schedule"), so a dropped trigger degrades to a queued job, never to lost
// work.
func (c *Coordinator) InitiatePipeline(ctx context.Context, req PipelineRequest) (parent, child *models.Job, err error) {
	if req.Text == "" {
		return nil, nil, fmt.Errorf("pipeline request has no text")
	}
	if req.Source == "" {
		return nil, nil, fmt.Errorf("pipeline request has no source")
	}
	limits := models.DefaultResourceLimits()
	if req.Limits != nil {
		limits = *req.Limits
	}

	now := time.Now()
	parent = &models.Job{
		ID:         newJobID(),
		Type:       models.JobTypeProcessKnowledge,
		Status:     models.StatusProcessing,
		Metadata:   models.NewPipelineMetadata(req.Source, limits),
		MaxRetries: c.cfg.MaxRetries,
		CreatedAt:  now,
		StartedAt:  &now,
	}
	parent, err = c.store.CreateJob(ctx, parent)
	if err != nil {
		return nil, nil, fmt.Errorf("create parent job: %w", err)
	}

	child = &models.Job{
		ID:           newJobID(),
		Type:         models.JobTypeExtractBatch,
		Stage:        models.StageForType(models.JobTypeExtractBatch),
		Status:       models.StatusQueued,
		ParentJobID:  &parent.ID,
		Metadata:     models.NewExtractionMetadata(req.Source, req.Text, limits),
		MaxRetries:   c.cfg.MaxRetries,
		CreatedAt:    now,
		ScheduledFor: &now,
	}
	child, err = c.store.CreateJob(ctx, child)
	if err != nil {
		return nil, nil, fmt.Errorf("create extraction job: %w", err)
	}

	c.publishTrigger(ctx, child.ID, 0)
	c.logger.Info("pipeline initiated",
		"parent_job_id", parent.ID, "extraction_job_id", child.ID, "source", req.Source)
	return parent, child, nil
}

// publishTrigger requests delivery of a job trigger. Publish failures are
// logged and swallowed: a stalled stage is an accepted degraded outcome that
// the sweeper recovers, not a pipeline failure.
func (c *Coordinator) publishTrigger(ctx context.Context, jobID string, delay time.Duration) {
	if c.channel == nil {
		c.logger.Warn("no delivery channel configured, job left queued", "job_id", jobID)
		return
	}
	if err := c.channel.Publish(ctx, c.cfg.TriggerTarget, queue.Trigger{JobID: jobID}, delay); err != nil {
		c.logger.Warn("failed to publish job trigger", "job_id", jobID, "delay", delay, "error", err)
	}
}

// CalculateProcessingDelay derives the base scheduling delay from extraction
// metrics: the larger of one second per second of processing time and one
// second per ten extracted triples, clamped to [6s, 60s]. Non-decreasing in
// both inputs.
func CalculateProcessingDelay(m models.ExtractionMetrics) time.Duration {
	timeSec := (m.ProcessingTimeMs + 999) / 1000
	tripleSec := int64(m.TriplesExtracted+9) / 10

	delay := timeSec
	if tripleSec > delay {
		delay = tripleSec
	}
	if delay < minProcessingDelaySec {
		delay = minProcessingDelaySec
	}
	if delay > maxProcessingDelaySec {
		delay = maxProcessingDelaySec
	}
	return time.Duration(delay) * time.Second
}

// SchedulePostProcessing creates the post-extraction child jobs under
// parentID and schedules their delivery. A GENERATE_CONCEPTS job is always
// created; a DEDUPLICATE_KNOWLEDGE job only when the dedup feature flag is
// enabled. Each child is durably written before its trigger is published.
func (c *Coordinator) SchedulePostProcessing(ctx context.Context, parentID string, m models.ExtractionMetrics) error {
	parent, err := c.store.GetJob(ctx, parentID)
	if err != nil {
		return fmt.Errorf("load parent job: %w", err)
	}
	if parent == nil {
		return fmt.Errorf("parent job not found: %s", parentID)
	}

	delay := CalculateProcessingDelay(m)

	conceptsDelay := delay / 10
	if conceptsDelay < minConceptsDelay {
		conceptsDelay = minConceptsDelay
	}
	if err := c.createStageJob(ctx, parent, models.JobTypeGenerateConcepts, conceptsDelay); err != nil {
		return err
	}

	if !c.cfg.DedupEnabled {
		return nil
	}
	dedupDelay := delay / 5
	if dedupDelay < minDedupDelay {
		dedupDelay = minDedupDelay
	}
	return c.createStageJob(ctx, parent, models.JobTypeDeduplicate, dedupDelay)
}

func (c *Coordinator) createStageJob(ctx context.Context, parent *models.Job, t models.JobType, delay time.Duration) error {
	now := time.Now()
	due := now.Add(delay)
	job := &models.Job{
		ID:           newJobID(),
		Type:         t,
		Stage:        models.StageForType(t),
		Status:       models.StatusQueued,
		ParentJobID:  &parent.ID,
		Metadata:     models.NewStageMetadata(parent.Metadata.Source(), parent.Metadata.ResourceLimits()),
		MaxRetries:   c.cfg.MaxRetries,
		CreatedAt:    now,
		ScheduledFor: &due,
	}
	job, err := c.store.CreateJob(ctx, job)
	if err != nil {
		return fmt.Errorf("create %s job: %w", t, err)
	}

	c.publishTrigger(ctx, job.ID, delay)
	c.logger.Info("stage scheduled",
		"parent_job_id", parent.ID, "job_id", job.ID, "job_type", t, "delay", delay)
	return nil
}

// UpdateJobProgress clamps progress into [0,100] and derives status from it:
// 100 completes the job, anything above zero marks it processing. A metrics
// blob, when given, is persisted alongside.
func (c *Coordinator) UpdateJobProgress(ctx context.Context, id string, progress int, metrics map[string]any) error {
	job, err := c.store.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", id)
	}

	progress = models.ClampProgress(progress)
	update := JobUpdate{Progress: &progress, Metrics: metrics}

	switch {
	case progress == 100:
		update.Status = statusPtr(models.StatusCompleted)
		update.CompletedAt = timePtr(time.Now())
	case progress > 0:
		update.Status = statusPtr(models.StatusProcessing)
		if job.StartedAt == nil {
			update.StartedAt = timePtr(time.Now())
		}
	}

	return c.store.UpdateJob(ctx, id, update)
}

// StageStatus is the per-stage slice of a pipeline status report.
type StageStatus struct {
	Status      models.JobStatus `json:"status"`
	Progress    int              `json:"progress"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Metrics     map[string]any   `json:"metrics,omitempty"`
}

// PipelineStatus aggregates a parent job and its stage children.
type PipelineStatus struct {
	ParentJobID string                       `json:"parent_job_id"`
	Status      models.JobStatus             `json:"status"`
	CreatedAt   time.Time                    `json:"created_at"`
	Stages      map[models.Stage]StageStatus `json:"stages"`
	IsComplete  bool                         `json:"is_complete"`
}

// PipelineStatus reports the aggregate state of one pipeline run.
// IsComplete is true only when the parent and every child are terminal.
func (c *Coordinator) PipelineStatus(ctx context.Context, parentID string) (*PipelineStatus, error) {
	parent, err := c.store.GetJob(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("load parent job: %w", err)
	}
	if parent == nil {
		return nil, fmt.Errorf("pipeline not found: %s", parentID)
	}

	children, err := c.store.FindJobs(ctx, JobFilter{ParentJobID: &parentID})
	if err != nil {
		return nil, fmt.Errorf("load child jobs: %w", err)
	}

	status := &PipelineStatus{
		ParentJobID: parent.ID,
		Status:      parent.Status,
		CreatedAt:   parent.CreatedAt,
		Stages:      make(map[models.Stage]StageStatus, len(children)),
		IsComplete:  parent.Status.Terminal(),
	}
	for _, child := range children {
		if child.Stage != nil {
			status.Stages[*child.Stage] = StageStatus{
				Status:      child.Status,
				Progress:    child.Progress,
				StartedAt:   child.StartedAt,
				CompletedAt: child.CompletedAt,
				Metrics:     child.Metrics,
			}
		}
		if !child.Status.Terminal() {
			status.IsComplete = false
		}
	}
	return status, nil
}

// Dispatch resolves a delivered trigger: it loads the job, skips jobs that
// are already terminal (at-least-once redelivery), routes the rest, and
// after a completed extraction schedules the post-processing stages. The
// completion write happens inside Route, before any scheduling; a failed
// completion write surfaces as a failed result, so no stage is ever
// scheduled ahead of its predecessor's durable status.
func (c *Coordinator) Dispatch(ctx context.Context, router *Router, jobID string) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		c.logger.Warn("trigger for unknown job", "job_id", jobID)
		return nil
	}
	if job.Status.Terminal() {
		c.logger.Debug("ignoring redelivered trigger for terminal job",
			"job_id", jobID, "status", job.Status)
		return nil
	}

	res := router.Route(ctx, job)

	if res.Success && job.Type == models.JobTypeExtractBatch && job.ParentJobID != nil {
		metrics := models.MetricsFromResult(res.Data)
		if err := c.SchedulePostProcessing(ctx, *job.ParentJobID, metrics); err != nil {
			// Best effort: extraction already succeeded durably.
			c.logger.Warn("failed to schedule post-processing stages",
				"parent_job_id", *job.ParentJobID, "error", err)
		}
	}

	if job.ParentJobID != nil {
		if err := c.FinalizePipeline(ctx, *job.ParentJobID); err != nil {
			c.logger.Warn("failed to finalize pipeline",
				"parent_job_id", *job.ParentJobID, "error", err)
		}
	}
	return nil
}

// FinalizePipeline moves the parent job to a terminal status once every child
// stage has finished: FAILED when any stage failed for good, COMPLETED
// otherwise. A child that failed with retries remaining keeps the pipeline
// open. Safe to call repeatedly; a terminal parent is left untouched.
func (c *Coordinator) FinalizePipeline(ctx context.Context, parentID string) error {
	parent, err := c.store.GetJob(ctx, parentID)
	if err != nil {
		return fmt.Errorf("load parent job: %w", err)
	}
	if parent == nil || parent.Status.Terminal() {
		return nil
	}

	children, err := c.store.FindJobs(ctx, JobFilter{ParentJobID: &parentID})
	if err != nil {
		return fmt.Errorf("load child jobs: %w", err)
	}
	if len(children) == 0 {
		return nil
	}

	anyFailed := false
	for _, child := range children {
		if child.Status == models.StatusFailed {
			if child.CanRetry() {
				return nil
			}
			anyFailed = true
			continue
		}
		if !child.Status.Terminal() {
			return nil
		}
	}

	update := JobUpdate{CompletedAt: timePtr(time.Now())}
	if anyFailed {
		update.Status = statusPtr(models.StatusFailed)
		update.ErrorMessage = strPtr("one or more pipeline stages failed")
	} else {
		update.Status = statusPtr(models.StatusCompleted)
		update.Progress = intPtr(100)
	}
	if err := c.store.UpdateJob(ctx, parentID, update); err != nil {
		return fmt.Errorf("finalize parent job: %w", err)
	}
	c.logger.Info("pipeline finished", "parent_job_id", parentID, "status", *update.Status)
	return nil
}
