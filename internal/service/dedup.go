package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"knograph/internal/jobs"
	"knograph/internal/metrics"
	"knograph/internal/models"
	"knograph/internal/resource"
)

// DefaultDedupThreshold is the cosine similarity above which two entities
// are treated as duplicates.
const DefaultDedupThreshold = 0.92

// DedupService merges near-duplicate entities by embedding similarity.
// It implements the job handler for DEDUPLICATE_KNOWLEDGE.
type DedupService struct {
	deps      Deps
	embedder  Embedder
	threshold float64
}

// NewDedupService creates the deduplication stage handler. threshold <= 0
// falls back to the default.
func NewDedupService(deps Deps, embedder Embedder, threshold float64) *DedupService {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}
	return &DedupService{deps: deps, embedder: embedder, threshold: threshold}
}

// CanHandle reports whether this handler processes the given job type.
func (s *DedupService) CanHandle(t models.JobType) bool {
	return t == models.JobTypeDeduplicate
}

// Execute embeds every entity of the job's source and merges pairs whose
// cosine similarity exceeds the threshold. Merging is idempotent: once the
// duplicates are gone a redelivered trigger finds nothing to merge.
func (s *DedupService) Execute(ctx context.Context, job *models.Job) models.JobResult {
	meta, err := models.StageMetadataFrom(job)
	if err != nil {
		return models.FailureResult(jobs.OpJobExecution, "Invalid dedup job metadata", err)
	}

	mgr := resource.NewManager(meta.Limits)
	logger := s.deps.logger().With("job_id", job.ID, "source", meta.Source)
	defer timeOp(s.deps.Metrics, metrics.OpDedup, time.Now())

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
		return models.SuccessResult(map[string]any{"entities_merged": 0})
	}

	texts := make([]string, len(entities))
	for i, e := range entities {
		texts[i] = e.Name
		if e.Description != "" {
			texts[i] += ": " + e.Description
		}
	}

	var vectors [][]float32
	err = mgr.WithAI(ctx, func(ctx context.Context) error {
		var embedErr error
		vectors, embedErr = s.embedder.EmbedBatch(ctx, texts)
		return embedErr
	})
	if err != nil {
		return models.FailureResult(jobs.OpJobExecution, "Failed to embed entities", err)
	}
	if len(vectors) != len(entities) {
		return models.FailureResult(jobs.OpJobExecution, "Embedding count mismatch",
			fmt.Errorf("got %d vectors for %d entities", len(vectors), len(entities)))
	}

	// Greedy clustering: each entity merges into the first earlier entity it
	// is similar to. The earlier entity (first extracted) survives.
	mergeInto := map[string][]string{}
	taken := make([]bool, len(entities))
	for i := range entities {
		if taken[i] {
			continue
		}
		for j := i + 1; j < len(entities); j++ {
			if taken[j] {
				continue
			}
			if cosineSimilarity(vectors[i], vectors[j]) >= s.threshold {
				mergeInto[entities[i].ID] = append(mergeInto[entities[i].ID], entities[j].ID)
				taken[j] = true
			}
		}
	}

	merged := 0
	for keepID, dropIDs := range mergeInto {
		err := s.deps.persist(ctx, mgr, func(ctx context.Context) error {
			return s.deps.Graph.MergeEntities(ctx, keepID, dropIDs)
		})
		if err != nil {
			return models.FailureResult(jobs.OpJobExecution,
				fmt.Sprintf("Failed to merge duplicates of %s", keepID), err)
		}
		merged += len(dropIDs)
		logger.Info("merged duplicate entities", "kept", keepID, "dropped", dropIDs)
	}

	logger.Info("deduplication complete", "entities", len(entities), "merged", merged)
	return models.SuccessResult(map[string]any{"entities_merged": merged})
}

var _ jobs.Handler = (*DedupService)(nil)

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
