package resource

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMonitorCheckAvailable(t *testing.T) {
	m := NewMemoryMonitor(1) // 1 MB limit

	m.usedBytes = func() uint64 { return 512 * 1024 }
	assert.True(t, m.CheckAvailable())
	assert.InDelta(t, 50.0, m.UsagePercent(), 0.01)

	m.usedBytes = func() uint64 { return 2 * 1024 * 1024 }
	assert.False(t, m.CheckAvailable())
	assert.Greater(t, m.UsagePercent(), 100.0)
}

func TestMemoryMonitorWaitUntilUnderLimit(t *testing.T) {
	m := NewMemoryMonitor(1)
	m.pollInterval = time.Millisecond

	var used atomic.Uint64
	used.Store(4 * 1024 * 1024)
	m.usedBytes = func() uint64 { return used.Load() }

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("wait returned while over the limit")
	case <-time.After(20 * time.Millisecond):
	}

	used.Store(1024)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait never observed freed memory")
	}
}

func TestMemoryMonitorWaitCancellation(t *testing.T) {
	m := NewMemoryMonitor(1)
	m.pollInterval = time.Millisecond
	m.usedBytes = func() uint64 { return 8 * 1024 * 1024 }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)
}

func TestMemoryMonitorRealHeap(t *testing.T) {
	// A generous limit against the real heap must report available.
	m := NewMemoryMonitor(1 << 20)
	assert.True(t, m.CheckAvailable())
	assert.NoError(t, m.Wait(context.Background()))
}
