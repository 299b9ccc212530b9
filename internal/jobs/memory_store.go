package jobs

import (
	"context"
	"fmt"
	"sync"

	"knograph/internal/models"
)

// MemoryStore is an in-memory Store for tests and broker-less single-node
// runs. All methods are safe for concurrent use; reads return copies so
// callers cannot mutate stored state.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.Job)}
}

func copyJob(j *models.Job) *models.Job {
	c := *j
	return &c
}

// CreateJob stores a new job. The id must be unique.
func (s *MemoryStore) CreateJob(_ context.Context, job *models.Job) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return nil, fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = copyJob(job)
	return copyJob(job), nil
}

// GetJob returns a copy of the job, or (nil, nil) when absent.
func (s *MemoryStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return copyJob(j), nil
}

// UpdateJob applies a partial update to an existing job.
func (s *MemoryStore) UpdateJob(_ context.Context, id string, u JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.Result != nil {
		j.Result = u.Result
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = u.ErrorMessage
	}
	if u.Metrics != nil {
		j.Metrics = u.Metrics
	}
	if u.RetryCount != nil {
		j.RetryCount = *u.RetryCount
	}
	if u.StartedAt != nil {
		j.StartedAt = u.StartedAt
	}
	if u.CompletedAt != nil {
		j.CompletedAt = u.CompletedAt
	}
	if u.ScheduledFor != nil {
		j.ScheduledFor = u.ScheduledFor
	}
	if u.ClearError {
		j.ErrorMessage = nil
	}
	if u.ClearResult {
		j.Result = nil
	}
	return nil
}

// FindJobs returns copies of all jobs matching the filter.
func (s *MemoryStore) FindJobs(_ context.Context, f JobFilter) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Job
	for _, j := range s.jobs {
		if f.ParentJobID != nil && (j.ParentJobID == nil || *j.ParentJobID != *f.ParentJobID) {
			continue
		}
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		if f.Type != nil && j.Type != *f.Type {
			continue
		}
		if f.ScheduledBefore != nil {
			if j.ScheduledFor == nil || !j.ScheduledFor.Before(*f.ScheduledBefore) {
				continue
			}
		}
		out = append(out, copyJob(j))
	}
	return out, nil
}
