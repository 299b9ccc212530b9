package service

import (
	"context"
	"time"

	"knograph/internal/jobs"
	"knograph/internal/metrics"
	"knograph/internal/models"
	"knograph/internal/resource"
)

// ConceptService groups extracted entities into higher-level concepts.
// It implements the job handler for GENERATE_CONCEPTS.
type ConceptService struct {
	deps Deps
}

// NewConceptService creates the concept stage handler.
func NewConceptService(deps Deps) *ConceptService {
	return &ConceptService{deps: deps}
}

// CanHandle reports whether this handler processes the given job type.
func (s *ConceptService) CanHandle(t models.JobType) bool {
	return t == models.JobTypeGenerateConcepts
}

// Execute generates concepts for the job's source. Triggers are delivered
// at-least-once, so a source that already has concepts is skipped rather
// than regenerated.
func (s *ConceptService) Execute(ctx context.Context, job *models.Job) models.JobResult {
	meta, err := models.StageMetadataFrom(job)
	if err != nil {
		return models.FailureResult(jobs.OpJobExecution, "Invalid concept job metadata", err)
	}

	mgr := resource.NewManager(meta.Limits)
	logger := s.deps.logger().With("job_id", job.ID, "source", meta.Source)
	defer timeOp(s.deps.Metrics, metrics.OpConcepts, time.Now())

	var existing int
	err = s.deps.persist(ctx, mgr, func(ctx context.Context) error {
		var countErr error
		existing, countErr = s.deps.Graph.ConceptCountBySource(ctx, meta.Source)
		return countErr
	})
	if err != nil {
		return models.FailureResult(jobs.OpJobExecution, "Failed to check existing concepts", err)
	}
	if existing > 0 {
		logger.Info("concepts already generated, skipping", "count", existing)
		return models.SuccessResult(map[string]any{"concepts_created": 0, "skipped": true})
	}

	var entities []models.Entity
	err = s.deps.persist(ctx, mgr, func(ctx context.Context) error {
		var loadErr error
		entities, loadErr = s.deps.Graph.EntitiesBySource(ctx, meta.Source)
		return loadErr
	})
	if err != nil {
		return models.FailureResult(jobs.OpJobExecution, "Failed to load entities", err)
	}
	if len(entities) < 2 {
		logger.Info("too few entities for concepts", "entities", len(entities))
		return models.SuccessResult(map[string]any{"concepts_created": 0})
	}

	known := make(map[string]bool, len(entities))
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		known[e.ID] = true
		names = append(names, e.ID)
	}

	var output string
	err = mgr.WithAI(ctx, func(ctx context.Context) error {
		return s.deps.generate(ctx, func(ctx context.Context) error {
			out, genErr := s.deps.Model.GenerateConcepts(ctx, names)
			output = out
			return genErr
		})
	})
	if err != nil {
		return models.FailureResult(jobs.OpJobExecution, "Concept generation failed", err)
	}

	concepts := parseConcepts(output, known)
	created := 0
	for _, c := range concepts {
		c.Source = meta.Source
		err := s.deps.persist(ctx, mgr, func(ctx context.Context) error {
			_, createErr := s.deps.Graph.CreateConcept(ctx, c)
			return createErr
		})
		if err != nil {
			logger.Warn("failed to store concept", "concept", c.ID, "error", err)
			continue
		}
		created++
	}

	logger.Info("concept generation complete", "concepts", created)
	return models.SuccessResult(map[string]any{"concepts_created": created})
}

var _ jobs.Handler = (*ConceptService)(nil)
