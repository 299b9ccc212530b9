package service

import (
	"context"
	"fmt"
	"time"

	"knograph/internal/jobs"
	"knograph/internal/models"
	"knograph/internal/parser"
	"knograph/internal/resource"
)

// ExtractionService turns source text into graph entities and relations.
// It implements the job handler for EXTRACT_KNOWLEDGE_BATCH.
type ExtractionService struct {
	deps        Deps
	chunkConfig parser.ChunkConfig
}

// NewExtractionService creates the extraction stage handler.
func NewExtractionService(deps Deps) *ExtractionService {
	return &ExtractionService{
		deps:        deps,
		chunkConfig: parser.DefaultChunkConfig(),
	}
}

// CanHandle reports whether this handler processes the given job type.
func (s *ExtractionService) CanHandle(t models.JobType) bool {
	return t == models.JobTypeExtractBatch
}

// Execute extracts entities and relations from the job's source text.
// Each chunk's generation call runs under the job's AI budget and the shared
// LLM circuit breaker; persistence runs under the job's connection budget.
// Stable slug IDs make re-running the same text an upsert, not a duplicate.
func (s *ExtractionService) Execute(ctx context.Context, job *models.Job) models.JobResult {
	meta, err := models.ExtractionMetadataFrom(job)
	if err != nil {
		return models.FailureResult(jobs.OpJobExecution, "Invalid extraction job metadata", err)
	}

	mgr := resource.NewManager(meta.Limits)
	logger := s.deps.logger().With("job_id", job.ID, "source", meta.Source)
	start := time.Now()

	chunks := parser.ChunkText(meta.Text, s.chunkConfig)
	logger.Info("starting extraction", "chunks", len(chunks), "text_len", len(meta.Text))

	entityByID := map[string]models.Entity{}
	var entityOrder []string
	var relations []models.Relation
	var knownNames []string

	for _, chunk := range chunks {
		var output string
		err := mgr.WithAI(ctx, func(ctx context.Context) error {
			return s.deps.generate(ctx, func(ctx context.Context) error {
				out, genErr := s.deps.Model.ExtractTriples(ctx, chunk.Content, knownNames)
				output = out
				return genErr
			})
		})
		if err != nil {
			return models.FailureResult(jobs.OpJobExecution,
				fmt.Sprintf("Extraction failed on chunk %d", chunk.Position), err)
		}

		chunkEntities, chunkRelations := parseTriples(output)
		for _, e := range chunkEntities {
			if _, seen := entityByID[e.ID]; !seen {
				entityOrder = append(entityOrder, e.ID)
				knownNames = append(knownNames, e.Name)
			}
			entityByID[e.ID] = e
		}
		relations = append(relations, chunkRelations...)
	}

	for _, id := range entityOrder {
		e := entityByID[id]
		e.Source = meta.Source
		err := s.deps.persist(ctx, mgr, func(ctx context.Context) error {
			_, _, upsertErr := s.deps.Graph.UpsertEntity(ctx, e)
			return upsertErr
		})
		if err != nil {
			return models.FailureResult(jobs.OpJobExecution,
				fmt.Sprintf("Failed to store entity %s", e.ID), err)
		}
	}

	stored := 0
	for _, r := range relations {
		r.Source = meta.Source
		err := s.deps.persist(ctx, mgr, func(ctx context.Context) error {
			return s.deps.Graph.CreateRelation(ctx, r)
		})
		if err != nil {
			// A relation naming an entity the model never emitted is model
			// noise, not a job failure.
			logger.Warn("failed to create relation", "from", r.FromID, "to", r.ToID, "error", err)
			continue
		}
		stored++
	}

	elapsed := time.Since(start)
	result := models.ExtractionMetrics{
		ProcessingTimeMs: elapsed.Milliseconds(),
		TriplesExtracted: stored,
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordExtraction(elapsed, int64(stored))
	}
	logger.Info("extraction complete",
		"entities", len(entityOrder), "triples", stored, "duration_ms", elapsed.Milliseconds())

	return models.SuccessResult(result.AsMap())
}

var _ jobs.Handler = (*ExtractionService)(nil)
