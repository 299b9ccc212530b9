// Package service implements the pipeline stage handlers: knowledge
// extraction, concept generation, and entity deduplication.
package service

import (
	"context"
	"log/slog"
	"time"

	"knograph/internal/metrics"
	"knograph/internal/models"
	"knograph/internal/resource"
)

// Generator produces text completions for pipeline prompts.
type Generator interface {
	ExtractTriples(ctx context.Context, text string, existingEntities []string) (string, error)
	GenerateConcepts(ctx context.Context, entities []string) (string, error)
}

// GraphStore persists extracted knowledge.
type GraphStore interface {
	UpsertEntity(ctx context.Context, e models.Entity) (*models.Entity, bool, error)
	CreateRelation(ctx context.Context, r models.Relation) error
	CreateConcept(ctx context.Context, c models.Concept) (*models.Concept, error)
	EntitiesBySource(ctx context.Context, source string) ([]models.Entity, error)
	ConceptCountBySource(ctx context.Context, source string) (int, error)
	MergeEntities(ctx context.Context, keepID string, dropIDs []string) error
}

// Embedder is the slice of embedding.Embedder deduplication needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// breakerKeyLLM guards all generation calls with one shared circuit.
const breakerKeyLLM = "llm"

// Deps bundles the shared dependencies of the stage handlers.
type Deps struct {
	Graph         GraphStore
	Model         Generator
	Breakers      *resource.BreakerRegistry
	BreakerConfig resource.BreakerConfig
	Metrics       *metrics.Collector
	Logger        *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// generate runs fn behind the LLM circuit breaker and records its duration.
func (d *Deps) generate(ctx context.Context, fn func(context.Context) error) error {
	defer timeOp(d.Metrics, metrics.OpLLMGenerate, time.Now())
	if d.Breakers == nil {
		return fn(ctx)
	}
	return d.Breakers.Do(ctx, breakerKeyLLM, d.BreakerConfig, fn)
}

// persist runs fn under the manager's connection budget and records its
// duration as a database query. The wait for a connection slot is not
// counted.
func (d *Deps) persist(ctx context.Context, mgr *resource.Manager, fn func(context.Context) error) error {
	return mgr.WithDatabase(ctx, func(ctx context.Context) error {
		defer timeOp(d.Metrics, metrics.OpDBQuery, time.Now())
		return fn(ctx)
	})
}

// timeOp records a timing metric if a collector is configured.
func timeOp(c *metrics.Collector, op string, start time.Time) {
	if c != nil {
		c.RecordTiming(op, time.Since(start))
	}
}
