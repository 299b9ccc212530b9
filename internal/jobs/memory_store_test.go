package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knograph/internal/models"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()

	created := seedJob(t, store, extractionJob("job-1"))
	assert.Equal(t, "job-1", created.ID)

	got, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeExtractBatch, got.Type)

	// Unknown job is (nil, nil), not an error.
	got, err = store.GetJob(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = store.CreateJob(context.Background(), extractionJob("job-1"))
	assert.Error(t, err)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	seedJob(t, store, extractionJob("job-1"))

	got, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	got.Status = models.StatusFailed

	again, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, again.Status)
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore()
	seedJob(t, store, extractionJob("job-1"))

	now := time.Now()
	err := store.UpdateJob(context.Background(), "job-1", JobUpdate{
		Status:       statusPtr(models.StatusFailed),
		Progress:     intPtr(30),
		ErrorMessage: strPtr("model unavailable"),
		RetryCount:   intPtr(1),
		CompletedAt:  &now,
	})
	require.NoError(t, err)

	got, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 30, got.Progress)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "model unavailable", *got.ErrorMessage)

	// Clearing wipes error and result without touching other fields.
	err = store.UpdateJob(context.Background(), "job-1", JobUpdate{ClearError: true, ClearResult: true})
	require.NoError(t, err)
	got, err = store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.Result)
	assert.Equal(t, 30, got.Progress)

	err = store.UpdateJob(context.Background(), "missing", JobUpdate{})
	assert.Error(t, err)
}

func TestMemoryStoreFindJobs(t *testing.T) {
	store := NewMemoryStore()
	parentID := "parent"

	a := extractionJob("a")
	a.ParentJobID = &parentID
	seedJob(t, store, a)

	b := extractionJob("b")
	b.ParentJobID = &parentID
	b.Status = models.StatusCompleted
	seedJob(t, store, b)

	seedJob(t, store, extractionJob("orphan"))

	children, err := store.FindJobs(context.Background(), JobFilter{ParentJobID: &parentID})
	require.NoError(t, err)
	assert.Len(t, children, 2)

	queued := models.StatusQueued
	both, err := store.FindJobs(context.Background(), JobFilter{ParentJobID: &parentID, Status: &queued})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "a", both[0].ID)

	extract := models.JobTypeExtractBatch
	all, err := store.FindJobs(context.Background(), JobFilter{Type: &extract})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStoreFindJobsScheduledBefore(t *testing.T) {
	store := NewMemoryStore()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := extractionJob("due")
	due.ScheduledFor = &past
	seedJob(t, store, due)

	later := extractionJob("later")
	later.ScheduledFor = &future
	seedJob(t, store, later)

	// Jobs without a due time never match a ScheduledBefore filter.
	seedJob(t, store, extractionJob("unscheduled"))

	now := time.Now()
	found, err := store.FindJobs(context.Background(), JobFilter{ScheduledBefore: &now})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "due", found[0].ID)
}
