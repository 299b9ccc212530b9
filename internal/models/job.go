// Package models defines data structures for the Knograph knowledge pipeline.
package models

import (
	"time"
)

// JobType identifies the kind of work a job performs.
type JobType string

const (
	// JobTypeProcessKnowledge is the parent job tracking a whole pipeline run.
	JobTypeProcessKnowledge JobType = "PROCESS_KNOWLEDGE"

	// JobTypeExtractBatch extracts entities and relations from source text.
	JobTypeExtractBatch JobType = "EXTRACT_KNOWLEDGE_BATCH"

	// JobTypeGenerateConcepts groups extracted entities into higher-level concepts.
	JobTypeGenerateConcepts JobType = "GENERATE_CONCEPTS"

	// JobTypeDeduplicate merges near-duplicate entities by embedding similarity.
	JobTypeDeduplicate JobType = "DEDUPLICATE_KNOWLEDGE"
)

// Stage identifies the pipeline phase a child job belongs to.
// Only stage-specific child jobs carry a stage; parent jobs do not.
type Stage string

const (
	StageExtraction    Stage = "EXTRACTION"
	StageConcepts      Stage = "CONCEPTS"
	StageDeduplication Stage = "DEDUPLICATION"
)

// StageForType returns the pipeline stage for a child job type,
// or nil for types that carry no stage.
func StageForType(t JobType) *Stage {
	var s Stage
	switch t {
	case JobTypeExtractBatch:
		s = StageExtraction
	case JobTypeGenerateConcepts:
		s = StageConcepts
	case JobTypeDeduplicate:
		s = StageDeduplication
	default:
		return nil
	}
	return &s
}

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	StatusQueued     JobStatus = "QUEUED"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether a status is final for the current lifecycle.
// A FAILED job may still re-enter QUEUED through an explicit retry.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a durable unit of pipeline work. Jobs form a two-level tree:
// one PROCESS_KNOWLEDGE parent with stage-specific children, never deeper.
type Job struct {
	ID           string         `json:"id"`
	Type         JobType        `json:"job_type"`
	Stage        *Stage         `json:"stage,omitempty"`
	Status       JobStatus      `json:"status"`
	ParentJobID  *string        `json:"parent_job_id,omitempty"`
	Metadata     Metadata       `json:"metadata,omitempty"`
	Progress     int            `json:"progress"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Metrics      map[string]any `json:"metrics,omitempty"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`

	// ScheduledFor records when a queued job was due for delivery.
	// The outbox sweeper republishes queued jobs past this time.
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// CanRetry reports whether the job is eligible for an explicit retry.
func (j *Job) CanRetry() bool {
	return j.Status == StatusFailed && j.RetryCount < j.MaxRetries
}

// ClampProgress bounds a progress value into [0, 100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
