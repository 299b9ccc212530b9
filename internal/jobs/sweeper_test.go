package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knograph/internal/models"
)

func TestSweepRepublishesDueJobs(t *testing.T) {
	store := NewMemoryStore()
	ch := &recordingChannel{}
	sweeper := NewSweeper(store, ch, "test.jobs", time.Minute, newTestLogger())

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := extractionJob("due")
	due.ScheduledFor = &past
	seedJob(t, store, due)

	notYet := extractionJob("not-yet")
	notYet.ScheduledFor = &future
	seedJob(t, store, notYet)

	finished := extractionJob("finished")
	finished.Status = models.StatusCompleted
	finished.ScheduledFor = &past
	seedJob(t, store, finished)

	sweeper.Sweep(context.Background())

	triggers := ch.triggers()
	require.Len(t, triggers, 1)
	assert.Equal(t, "due", triggers[0].jobID)
	assert.Equal(t, "test.jobs", triggers[0].target)
}

func TestSweepPublishFailureLeavesJobQueued(t *testing.T) {
	store := NewMemoryStore()
	ch := &recordingChannel{err: errors.New("broker gone")}
	sweeper := NewSweeper(store, ch, "test.jobs", time.Minute, newTestLogger())

	past := time.Now().Add(-time.Minute)
	job := extractionJob("due")
	job.ScheduledFor = &past
	seedJob(t, store, job)

	sweeper.Sweep(context.Background())

	// Still queued and due, so the next pass retries it.
	stored, err := store.GetJob(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, stored.Status)

	ch.mu.Lock()
	ch.err = nil
	ch.mu.Unlock()
	sweeper.Sweep(context.Background())
	require.Len(t, ch.triggers(), 1)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore()
	sweeper := NewSweeper(store, &recordingChannel{}, "test.jobs", 5*time.Millisecond, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
