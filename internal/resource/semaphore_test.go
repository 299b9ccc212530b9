package resource

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreCapsConcurrency(t *testing.T) {
	const permits = 3
	const tasks = 20

	sem := NewSemaphore(permits)
	var running, peak int64
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sem.Do(context.Background(), func(context.Context) error {
				n := atomic.AddInt64(&running, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(permits), "more than %d tasks ran at once", permits)
	assert.Equal(t, permits, sem.Available())
	assert.Equal(t, 0, sem.Waiting())
}

func TestSemaphoreFIFOWakeOrder(t *testing.T) {
	sem := NewSemaphore(1)
	require.NoError(t, sem.Acquire(context.Background()))

	const waiters = 5
	order := make(chan int, waiters)
	started := make(chan struct{}, waiters)
	var wg sync.WaitGroup

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			// Serialize queue entry so arrival order is deterministic.
			<-started
			require.NoError(t, sem.Acquire(context.Background()))
			order <- id
			sem.Release()
		}(i)

		started <- struct{}{}
		// Wait until this goroutine is actually queued before admitting the next.
		require.Eventually(t, func() bool {
			return sem.Waiting() == i+1
		}, time.Second, time.Millisecond)
	}

	sem.Release()
	wg.Wait()
	close(order)

	var got []int
	for id := range order {
		got = append(got, id)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got, "waiters must be served in arrival order")
}

func TestSemaphoreReleaseOnError(t *testing.T) {
	sem := NewSemaphore(1)
	err := sem.Do(context.Background(), func(context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, sem.Available(), "permit must be released on task failure")
}

func TestSemaphoreAcquireCancellation(t *testing.T) {
	sem := NewSemaphore(1)
	require.NoError(t, sem.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sem.Acquire(ctx)
	}()

	require.Eventually(t, func() bool { return sem.Waiting() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter never returned")
	}
	assert.Equal(t, 0, sem.Waiting(), "cancelled waiter must leave the queue")

	// The held permit is still usable by the next caller.
	sem.Release()
	assert.Equal(t, 1, sem.Available())
}
