// Package jobs implements the pipeline orchestration core: the job store
// contract, the routing state machine, the pipeline coordinator, and the
// outbox sweeper that recovers dropped stage triggers.
package jobs

import (
	"context"
	"time"

	"knograph/internal/models"
)

// JobUpdate is a partial update applied to a persisted job. Nil fields are
// left untouched; the Clear flags reset fields that a nil pointer cannot
// distinguish from "unchanged".
type JobUpdate struct {
	Status       *models.JobStatus
	Progress     *int
	Result       map[string]any
	ErrorMessage *string
	Metrics      map[string]any
	RetryCount   *int
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ScheduledFor *time.Time

	ClearError  bool
	ClearResult bool
}

// JobFilter selects jobs in FindJobs. Nil fields match everything.
type JobFilter struct {
	ParentJobID     *string
	Status          *models.JobStatus
	Type            *models.JobType
	ScheduledBefore *time.Time
}

// Store is the persistence contract the orchestrator depends on. It is
// assumed to give read-your-writes consistency within one process.
// GetJob returns (nil, nil) for an unknown id.
type Store interface {
	CreateJob(ctx context.Context, job *models.Job) (*models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJob(ctx context.Context, id string, update JobUpdate) error
	FindJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)
}

func statusPtr(s models.JobStatus) *models.JobStatus { return &s }
func intPtr(i int) *int                              { return &i }
func strPtr(s string) *string                        { return &s }
func timePtr(t time.Time) *time.Time                 { return &t }
