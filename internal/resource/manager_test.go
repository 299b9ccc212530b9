package resource

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"knograph/internal/models"
)

func TestManagerWithDatabaseCapsConnections(t *testing.T) {
	m := NewManager(models.ResourceLimits{MaxConnections: 2, MaxAICalls: 4, MaxMemoryMB: 4096})

	var running, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithDatabase(context.Background(), func(context.Context) error {
				n := atomic.AddInt64(&running, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt64(&running, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak, int64(2))
}

func TestManagerWithAIRunsOperation(t *testing.T) {
	m := NewManager(models.DefaultResourceLimits())

	ran := false
	err := m.WithAI(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestManagerWithAIPropagatesError(t *testing.T) {
	m := NewManager(models.DefaultResourceLimits())
	err := m.WithAI(context.Background(), func(context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	st := m.Status()
	assert.Equal(t, 4, st.AIAvailable, "AI permit must be released after failure")
}

func TestManagerStatus(t *testing.T) {
	m := NewManager(models.ResourceLimits{MaxConnections: 2, MaxAICalls: 4, MaxMemoryMB: 4096})

	st := m.Status()
	assert.Equal(t, 2, st.DatabaseAvailable)
	assert.Equal(t, 0, st.DatabaseWaiting)
	assert.Equal(t, 4, st.AIAvailable)
	assert.Equal(t, 4, st.RateTokens)
	assert.Greater(t, st.MemoryUsedPercent, 0.0)
}

func TestManagersAreIndependent(t *testing.T) {
	// Two managers from the same limits hold separate budgets.
	a := NewManager(models.ResourceLimits{MaxConnections: 1, MaxAICalls: 1, MaxMemoryMB: 4096})
	b := NewManager(models.ResourceLimits{MaxConnections: 1, MaxAICalls: 1, MaxMemoryMB: 4096})

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = a.WithDatabase(context.Background(), func(context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	done := make(chan error, 1)
	go func() {
		done <- b.WithDatabase(context.Background(), func(context.Context) error { return nil })
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("manager b was blocked by manager a's permit")
	}
	close(release)
}
