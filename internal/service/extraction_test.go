package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knograph/internal/metrics"
	"knograph/internal/models"
)

func extractionTestJob(text string) *models.Job {
	return &models.Job{
		ID:       "extract-1",
		Type:     models.JobTypeExtractBatch,
		Stage:    models.StageForType(models.JobTypeExtractBatch),
		Status:   models.StatusProcessing,
		Metadata: models.NewExtractionMetadata("geo.md", text, models.DefaultResourceLimits()),
	}
}

func TestExtractionExecute(t *testing.T) {
	graph := newFakeGraph()
	gen := &fakeGenerator{outputs: []string{
		"ENTITY|Paris|place|Capital of France\n" +
			"ENTITY|France|place|Country in Europe\n" +
			"RELATION|Paris|France|located_in\n" +
			"garbage line the model emitted\n",
	}}
	svc := NewExtractionService(testDeps(graph, gen))

	res := svc.Execute(context.Background(), extractionTestJob("Paris is the capital of France."))
	require.True(t, res.Success, "result error: %v", res.Error)

	assert.Len(t, graph.entities, 2)
	assert.Contains(t, graph.entities, "paris")
	assert.Contains(t, graph.entities, "france")
	assert.Equal(t, "geo.md", graph.entities["paris"].Source)
	require.Len(t, graph.relation, 1)
	assert.Equal(t, "located_in", graph.relation[0].Type)

	metrics := models.MetricsFromResult(res.Data)
	assert.Equal(t, 1, metrics.TriplesExtracted)
	assert.GreaterOrEqual(t, metrics.ProcessingTimeMs, int64(0))
}

func TestExtractionExecuteInvalidMetadata(t *testing.T) {
	svc := NewExtractionService(testDeps(newFakeGraph(), &fakeGenerator{}))

	job := &models.Job{ID: "bad", Type: models.JobTypeExtractBatch, Metadata: models.Metadata{}}
	res := svc.Execute(context.Background(), job)
	require.False(t, res.Success)
	assert.Contains(t, res.Error.Message, "metadata")
}

func TestExtractionExecuteGenerationFailure(t *testing.T) {
	graph := newFakeGraph()
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	svc := NewExtractionService(testDeps(graph, gen))

	res := svc.Execute(context.Background(), extractionTestJob("Some text."))
	require.False(t, res.Success)
	assert.Empty(t, graph.entities)
}

func TestExtractionExecuteStoreFailure(t *testing.T) {
	graph := newFakeGraph()
	graph.failAll = true
	gen := &fakeGenerator{outputs: []string{"ENTITY|Paris|place|Capital"}}
	svc := NewExtractionService(testDeps(graph, gen))

	res := svc.Execute(context.Background(), extractionTestJob("Some text."))
	require.False(t, res.Success)
}

func TestExtractionSkipsBrokenRelations(t *testing.T) {
	graph := newFakeGraph()
	gen := &fakeGenerator{outputs: []string{
		"ENTITY|Paris|place|Capital\n" +
			"RELATION|Paris|Atlantis|located_in\n",
	}}
	svc := NewExtractionService(testDeps(graph, gen))

	// Relation references an entity the model never emitted.
	res := svc.Execute(context.Background(), extractionTestJob("Some text."))
	require.True(t, res.Success)
	assert.Empty(t, graph.relation)
	assert.Equal(t, 0, models.MetricsFromResult(res.Data).TriplesExtracted)
}

func TestExtractionRecordsRuntimeStats(t *testing.T) {
	graph := newFakeGraph()
	gen := &fakeGenerator{outputs: []string{
		"ENTITY|Paris|place|Capital of France\n" +
			"ENTITY|France|place|Country in Europe\n" +
			"RELATION|Paris|France|located_in\n",
	}}
	deps := testDeps(graph, gen)
	deps.Metrics = metrics.NewCollector()
	svc := NewExtractionService(deps)

	res := svc.Execute(context.Background(), extractionTestJob("Paris is the capital of France."))
	require.True(t, res.Success, "result error: %v", res.Error)

	snap := deps.Metrics.Snapshot()
	require.NotNil(t, snap.Extraction)
	assert.Equal(t, int64(1), snap.Extraction.Count)
	require.NotNil(t, snap.Extraction.TotalTriples)
	assert.Equal(t, int64(1), *snap.Extraction.TotalTriples)

	require.NotNil(t, snap.LLMGenerate)
	assert.Equal(t, int64(1), snap.LLMGenerate.Count)

	// Two entity upserts plus one relation insert.
	require.NotNil(t, snap.DBQuery)
	assert.Equal(t, int64(3), snap.DBQuery.Count)
}

func TestExtractionRerunUpserts(t *testing.T) {
	graph := newFakeGraph()
	gen := &fakeGenerator{outputs: []string{
		"ENTITY|Paris|place|Capital of France\n",
	}}
	svc := NewExtractionService(testDeps(graph, gen))

	job := extractionTestJob("Paris.")
	require.True(t, svc.Execute(context.Background(), job).Success)
	require.True(t, svc.Execute(context.Background(), job).Success)

	// Same slug, so reprocessing updates rather than duplicates.
	assert.Len(t, graph.entities, 1)
}
