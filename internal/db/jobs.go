package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"knograph/internal/jobs"
	"knograph/internal/models"
)

// JobStore persists pipeline jobs in the job table.
type JobStore struct {
	client *Client
}

var _ jobs.Store = (*JobStore)(nil)

// NewJobStore creates a job store backed by client.
func NewJobStore(client *Client) *JobStore {
	return &JobStore{client: client}
}

// jobRecord is the wire shape of a job row.
type jobRecord struct {
	ID           surrealmodels.RecordID `json:"id"`
	JobType      string                 `json:"job_type"`
	Stage        *string                `json:"stage,omitempty"`
	Status       string                 `json:"status"`
	ParentJobID  *string                `json:"parent_job_id,omitempty"`
	Metadata     map[string]any         `json:"metadata,omitempty"`
	Progress     int                    `json:"progress"`
	Result       map[string]any         `json:"result,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	Metrics      map[string]any         `json:"metrics,omitempty"`
	RetryCount   int                    `json:"retry_count"`
	MaxRetries   int                    `json:"max_retries"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	ScheduledFor *time.Time             `json:"scheduled_for,omitempty"`
}

func (r *jobRecord) toJob() *models.Job {
	job := &models.Job{
		ID:           fmt.Sprintf("%v", r.ID.ID),
		Type:         models.JobType(r.JobType),
		Status:       models.JobStatus(r.Status),
		ParentJobID:  r.ParentJobID,
		Metadata:     models.Metadata(r.Metadata),
		Progress:     r.Progress,
		Result:       r.Result,
		ErrorMessage: r.ErrorMessage,
		Metrics:      r.Metrics,
		RetryCount:   r.RetryCount,
		MaxRetries:   r.MaxRetries,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		ScheduledFor: r.ScheduledFor,
	}
	if r.Stage != nil {
		s := models.Stage(*r.Stage)
		job.Stage = &s
	}
	return job
}

// CreateJob inserts a new job row. Fails if the ID is taken.
func (s *JobStore) CreateJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	var stage *string
	if job.Stage != nil {
		v := string(*job.Stage)
		stage = &v
	}

	sql := `
		CREATE type::record("job", $id) SET
			job_type = $job_type,
			stage = $stage,
			status = $status,
			parent_job_id = $parent_job_id,
			metadata = $metadata,
			progress = $progress,
			retry_count = $retry_count,
			max_retries = $max_retries,
			created_at = type::datetime($created_at),
			scheduled_for = IF $scheduled_for THEN type::datetime($scheduled_for) ELSE NONE END
		RETURN AFTER
	`
	results, err := surrealdb.Query[[]jobRecord](ctx, s.client.db, sql, map[string]any{
		"id":            job.ID,
		"job_type":      string(job.Type),
		"stage":         stage,
		"status":        string(job.Status),
		"parent_job_id": job.ParentJobID,
		"metadata":      map[string]any(job.Metadata),
		"progress":      job.Progress,
		"retry_count":   job.RetryCount,
		"max_retries":   job.MaxRetries,
		"created_at":    job.CreatedAt.UTC().Format(time.RFC3339Nano),
		"scheduled_for": formatTimePtr(job.ScheduledFor),
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create job: no result returned")
	}
	return (*results)[0].Result[0].toJob(), nil
}

// GetJob loads a job by ID. Returns (nil, nil) when absent.
func (s *JobStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	results, err := surrealdb.Query[[]jobRecord](ctx, s.client.db, `
		SELECT * FROM type::record("job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return (*results)[0].Result[0].toJob(), nil
}

// UpdateJob applies a partial update, touching only the fields set in u.
func (s *JobStore) UpdateJob(ctx context.Context, id string, u jobs.JobUpdate) error {
	var sets []string
	vars := map[string]any{"id": id}

	if u.Status != nil {
		sets = append(sets, "status = $status")
		vars["status"] = string(*u.Status)
	}
	if u.Progress != nil {
		sets = append(sets, "progress = $progress")
		vars["progress"] = *u.Progress
	}
	if u.RetryCount != nil {
		sets = append(sets, "retry_count = $retry_count")
		vars["retry_count"] = *u.RetryCount
	}
	if u.Result != nil {
		sets = append(sets, "result = $result")
		vars["result"] = u.Result
	} else if u.ClearResult {
		sets = append(sets, "result = NONE")
	}
	if u.ErrorMessage != nil {
		sets = append(sets, "error_message = $error_message")
		vars["error_message"] = *u.ErrorMessage
	} else if u.ClearError {
		sets = append(sets, "error_message = NONE")
	}
	if u.Metrics != nil {
		sets = append(sets, "metrics = $metrics")
		vars["metrics"] = u.Metrics
	}
	if u.StartedAt != nil {
		sets = append(sets, "started_at = type::datetime($started_at)")
		vars["started_at"] = u.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if u.CompletedAt != nil {
		sets = append(sets, "completed_at = type::datetime($completed_at)")
		vars["completed_at"] = u.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if u.ScheduledFor != nil {
		sets = append(sets, "scheduled_for = type::datetime($scheduled_for)")
		vars["scheduled_for"] = u.ScheduledFor.UTC().Format(time.RFC3339Nano)
	}
	if len(sets) == 0 {
		return nil
	}

	sql := fmt.Sprintf(`UPDATE type::record("job", $id) SET %s RETURN AFTER`, strings.Join(sets, ", "))
	results, err := surrealdb.Query[[]jobRecord](ctx, s.client.db, sql, vars)
	if err != nil {
		return fmt.Errorf("update job: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("update job %s: %w", id, ErrNotFound)
	}
	return nil
}

// FindJobs returns jobs matching the filter, oldest first.
func (s *JobStore) FindJobs(ctx context.Context, f jobs.JobFilter) ([]*models.Job, error) {
	var conds []string
	vars := map[string]any{}

	if f.ParentJobID != nil {
		conds = append(conds, "parent_job_id = $parent_job_id")
		vars["parent_job_id"] = *f.ParentJobID
	}
	if f.Status != nil {
		conds = append(conds, "status = $status")
		vars["status"] = string(*f.Status)
	}
	if f.Type != nil {
		conds = append(conds, "job_type = $job_type")
		vars["job_type"] = string(*f.Type)
	}
	if f.ScheduledBefore != nil {
		conds = append(conds, "scheduled_for != NONE AND scheduled_for < type::datetime($scheduled_before)")
		vars["scheduled_before"] = f.ScheduledBefore.UTC().Format(time.RFC3339Nano)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	sql := fmt.Sprintf(`SELECT * FROM job %s ORDER BY created_at ASC`, where)

	results, err := surrealdb.Query[[]jobRecord](ctx, s.client.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("find jobs: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	found := make([]*models.Job, 0, len((*results)[0].Result))
	for i := range (*results)[0].Result {
		found = append(found, (*results)[0].Result[i].toJob())
	}
	return found, nil
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.RFC3339Nano)
	return &v
}
