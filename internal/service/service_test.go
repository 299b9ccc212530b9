package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"knograph/internal/models"
	"knograph/internal/resource"
)

// fakeGraph is an in-memory GraphStore.
type fakeGraph struct {
	mu       sync.Mutex
	entities map[string]models.Entity
	relation []models.Relation
	concepts map[string]models.Concept

	relationErr error
	failAll     bool
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		entities: map[string]models.Entity{},
		concepts: map[string]models.Concept{},
	}
}

func (g *fakeGraph) UpsertEntity(_ context.Context, e models.Entity) (*models.Entity, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll {
		return nil, false, errors.New("store unavailable")
	}
	_, existed := g.entities[e.ID]
	g.entities[e.ID] = e
	return &e, !existed, nil
}

func (g *fakeGraph) CreateRelation(_ context.Context, r models.Relation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll {
		return errors.New("store unavailable")
	}
	if g.relationErr != nil {
		return g.relationErr
	}
	if _, ok := g.entities[r.FromID]; !ok {
		return errors.New("entity not found")
	}
	if _, ok := g.entities[r.ToID]; !ok {
		return errors.New("entity not found")
	}
	g.relation = append(g.relation, r)
	return nil
}

func (g *fakeGraph) CreateConcept(_ context.Context, c models.Concept) (*models.Concept, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll {
		return nil, errors.New("store unavailable")
	}
	g.concepts[c.ID] = c
	return &c, nil
}

func (g *fakeGraph) EntitiesBySource(_ context.Context, source string) ([]models.Entity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll {
		return nil, errors.New("store unavailable")
	}
	var out []models.Entity
	for _, e := range g.entities {
		if e.Source == source {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *fakeGraph) ConceptCountBySource(_ context.Context, source string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll {
		return 0, errors.New("store unavailable")
	}
	count := 0
	for _, c := range g.concepts {
		if c.Source == source {
			count++
		}
	}
	return count, nil
}

func (g *fakeGraph) MergeEntities(_ context.Context, keepID string, dropIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll {
		return errors.New("store unavailable")
	}
	for _, id := range dropIDs {
		delete(g.entities, id)
	}
	return nil
}

// fakeGenerator returns canned outputs in order, then repeats the last one.
type fakeGenerator struct {
	mu      sync.Mutex
	outputs []string
	err     error
	calls   int
}

func (f *fakeGenerator) next() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	i := f.calls
	f.calls++
	if i >= len(f.outputs) {
		i = len(f.outputs) - 1
	}
	if i < 0 {
		return "", nil
	}
	return f.outputs[i], nil
}

func (f *fakeGenerator) ExtractTriples(_ context.Context, _ string, _ []string) (string, error) {
	return f.next()
}

func (f *fakeGenerator) GenerateConcepts(_ context.Context, _ []string) (string, error) {
	return f.next()
}

// fakeEmbedder returns a fixed vector per text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{1, 0, 0}
		}
		out[i] = v
	}
	return out, nil
}

func testDeps(graph *fakeGraph, gen *fakeGenerator) Deps {
	return Deps{
		Graph:         graph,
		Model:         gen,
		Breakers:      resource.NewBreakerRegistry(),
		BreakerConfig: resource.DefaultBreakerConfig(),
		Logger:        slog.New(slog.DiscardHandler),
	}
}

func stageJob(id string, t models.JobType, source string) *models.Job {
	return &models.Job{
		ID:       id,
		Type:     t,
		Stage:    models.StageForType(t),
		Status:   models.StatusProcessing,
		Metadata: models.NewStageMetadata(source, models.DefaultResourceLimits()),
	}
}
