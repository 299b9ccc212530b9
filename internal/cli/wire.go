package cli

import (
	"context"
	"fmt"

	"knograph/internal/db"
	"knograph/internal/embedding"
	"knograph/internal/jobs"
	"knograph/internal/llm"
	"knograph/internal/metrics"
	"knograph/internal/models"
	"knograph/internal/queue"
	"knograph/internal/resource"
	"knograph/internal/service"
)

// graphStore adapts the db client to the store surface the stage handlers use.
type graphStore struct {
	client *db.Client
}

func (g *graphStore) UpsertEntity(ctx context.Context, e models.Entity) (*models.Entity, bool, error) {
	return g.client.QueryUpsertEntity(ctx, e)
}

func (g *graphStore) CreateRelation(ctx context.Context, r models.Relation) error {
	return g.client.QueryCreateRelation(ctx, r)
}

func (g *graphStore) CreateConcept(ctx context.Context, c models.Concept) (*models.Concept, error) {
	return g.client.QueryCreateConcept(ctx, c)
}

func (g *graphStore) EntitiesBySource(ctx context.Context, source string) ([]models.Entity, error) {
	return g.client.QueryEntitiesBySource(ctx, source)
}

func (g *graphStore) ConceptCountBySource(ctx context.Context, source string) (int, error) {
	return g.client.QueryConceptCountBySource(ctx, source)
}

func (g *graphStore) MergeEntities(ctx context.Context, keepID string, dropIDs []string) error {
	return g.client.QueryMergeEntities(ctx, keepID, dropIDs)
}

// dialBroker connects to the configured AMQP broker and declares the jobs
// target. Returns (nil, nil) when no broker is configured.
func dialBroker() (*queue.AMQPChannel, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	ch, err := queue.DialAMQP(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	if err := ch.DeclareTarget(cfg.JobsTarget); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare jobs target: %w", err)
	}
	return ch, nil
}

// brokerChannel converts a possibly-nil broker into the channel interface
// without producing a non-nil interface around a nil pointer.
func brokerChannel(ch *queue.AMQPChannel) queue.Channel {
	if ch == nil {
		return nil
	}
	return ch
}

// buildRouter wires the stage handlers onto a router and returns the metrics
// collector they share. The deduplication handler is only registered when the
// feature is enabled, so dedup jobs in a disabled deployment fail fast with a
// routing error instead of hanging.
func buildRouter() (*jobs.Router, *metrics.Collector, error) {
	model, err := llm.NewModel(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init model: %w", err)
	}

	collector := metrics.NewCollector()
	deps := service.Deps{
		Graph:         &graphStore{client: dbClient},
		Model:         model,
		Breakers:      resource.NewBreakerRegistry(),
		BreakerConfig: resource.DefaultBreakerConfig(),
		Metrics:       collector,
		Logger:        logger,
	}

	router := jobs.NewRouter(jobStore, logger,
		service.NewExtractionService(deps),
		service.NewConceptService(deps),
	)

	if cfg.DedupEnabled {
		embedder, err := embedding.New(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("init embedder: %w", err)
		}
		router.Register(service.NewDedupService(deps, embedder, cfg.DedupThreshold))
	}

	return router, collector, nil
}
