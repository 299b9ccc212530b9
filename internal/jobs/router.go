package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"knograph/internal/models"
)

// Operation names recorded on routing and retry failures.
const (
	OpJobRouting   = "job_routing"
	OpJobExecution = "job_execution"
	OpJobRetry     = "job_retry"
)

// Handler executes one job type. Implementations must be idempotent: the
// delivery channel is at-least-once, so a completed job can be redelivered.
type Handler interface {
	CanHandle(t models.JobType) bool
	Execute(ctx context.Context, job *models.Job) models.JobResult
}

// Router drives the job status state machine: it resolves the handler for a
// job, records PROCESSING before execution, and durably records the outcome
// before returning. A handler error or panic never escapes without the
// failure being written first.
type Router struct {
	store    Store
	handlers []Handler
	logger   *slog.Logger
}

// NewRouter creates a router over the given store.
func NewRouter(store Store, logger *slog.Logger, handlers ...Handler) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{store: store, handlers: handlers, logger: logger}
}

// Register adds a handler.
func (r *Router) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

func (r *Router) handlerFor(t models.JobType) Handler {
	for _, h := range r.handlers {
		if h.CanHandle(t) {
			return h
		}
	}
	return nil
}

// Route executes the job through its handler, persisting every status
// transition: QUEUED→PROCESSING→{COMPLETED,FAILED}.
func (r *Router) Route(ctx context.Context, job *models.Job) models.JobResult {
	handler := r.handlerFor(job.Type)
	if handler == nil {
		// Configuration error, not retryable: no amount of retrying grows
		// a handler for an unregistered type.
		msg := fmt.Sprintf("No handler found for job type %s", job.Type)
		r.persistFailure(ctx, job.ID, msg)
		r.logger.Error("job routing failed", "job_id", job.ID, "job_type", job.Type)
		return models.FailureResult(OpJobRouting, msg, nil)
	}

	update := JobUpdate{Status: statusPtr(models.StatusProcessing)}
	if job.StartedAt == nil {
		update.StartedAt = timePtr(time.Now())
	}
	if err := r.store.UpdateJob(ctx, job.ID, update); err != nil {
		msg := "failed to mark job processing"
		r.logger.Error(msg, "job_id", job.ID, "error", err)
		return models.FailureResult(OpJobRouting, msg, err)
	}

	res := r.execute(ctx, handler, job)

	if res.Success {
		err := r.store.UpdateJob(ctx, job.ID, JobUpdate{
			Status:      statusPtr(models.StatusCompleted),
			CompletedAt: timePtr(time.Now()),
			Result:      res.Data,
			Progress:    intPtr(100),
		})
		if err != nil {
			// The work happened but its completion is not durable; reporting
			// success here would let a follow-up stage be scheduled ahead of
			// the status write. The job stays PROCESSING in the store.
			r.logger.Error("failed to persist job completion", "job_id", job.ID, "error", err)
			return models.FailureResult(OpJobRouting, "failed to persist job completion", err)
		}
		r.logger.Info("job completed", "job_id", job.ID, "job_type", job.Type)
		return res
	}

	r.persistFailure(ctx, job.ID, res.Error.Error())
	r.logger.Error("job failed", "job_id", job.ID, "job_type", job.Type, "error", res.Error)
	return res
}

// execute invokes the handler, converting a panic into a failed result.
func (r *Router) execute(ctx context.Context, handler Handler, job *models.Job) (res models.JobResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job handler panicked", "job_id", job.ID, "panic", rec)
			res = models.FailureResult(OpJobExecution, fmt.Sprintf("handler panic: %v", rec), nil)
		}
	}()
	return handler.Execute(ctx, job)
}

func (r *Router) persistFailure(ctx context.Context, id, msg string) {
	err := r.store.UpdateJob(ctx, id, JobUpdate{
		Status:       statusPtr(models.StatusFailed),
		ErrorMessage: strPtr(msg),
		CompletedAt:  timePtr(time.Now()),
	})
	if err != nil {
		r.logger.Error("failed to persist job failure", "job_id", id, "error", err)
	}
}

// CanRetry reports whether the job is FAILED with retries remaining.
func (r *Router) CanRetry(ctx context.Context, id string) (bool, error) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	return job.CanRetry(), nil
}

// Retry re-runs a failed job. Ineligible jobs get a failed result without
// any state mutation. An eligible job has its retry count incremented and
// its status, error, result, and progress reset before re-routing.
func (r *Router) Retry(ctx context.Context, id string) models.JobResult {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return models.FailureResult(OpJobRetry, "failed to load job", err)
	}
	if job == nil {
		return models.FailureResult(OpJobRetry, fmt.Sprintf("job not found: %s", id), nil)
	}
	if !job.CanRetry() {
		return models.FailureResult(OpJobRetry, "Job cannot be retried", nil)
	}

	err = r.store.UpdateJob(ctx, id, JobUpdate{
		Status:      statusPtr(models.StatusQueued),
		RetryCount:  intPtr(job.RetryCount + 1),
		Progress:    intPtr(0),
		ClearError:  true,
		ClearResult: true,
	})
	if err != nil {
		return models.FailureResult(OpJobRetry, "failed to reset job for retry", err)
	}

	job, err = r.store.GetJob(ctx, id)
	if err != nil || job == nil {
		return models.FailureResult(OpJobRetry, "failed to reload job after reset", err)
	}
	r.logger.Info("retrying job", "job_id", id, "retry_count", job.RetryCount, "max_retries", job.MaxRetries)
	return r.Route(ctx, job)
}
