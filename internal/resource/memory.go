package resource

import (
	"context"
	"runtime"
	"time"
)

// DefaultMemoryPollInterval is how often Wait re-checks heap usage.
const DefaultMemoryPollInterval = 100 * time.Millisecond

// MemoryMonitor is a backpressure valve over heap usage. It never fails an
// operation; it only delays callers until usage drops under the limit.
type MemoryMonitor struct {
	maxBytes     uint64
	pollInterval time.Duration

	// usedBytes is indirected for tests.
	usedBytes func() uint64
}

// NewMemoryMonitor creates a monitor that considers memory available while
// heap allocation stays under maxMemoryMB.
func NewMemoryMonitor(maxMemoryMB int) *MemoryMonitor {
	if maxMemoryMB < 1 {
		maxMemoryMB = 1
	}
	return &MemoryMonitor{
		maxBytes:     uint64(maxMemoryMB) * 1024 * 1024,
		pollInterval: DefaultMemoryPollInterval,
		usedBytes:    heapAlloc,
	}
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// CheckAvailable reports whether current heap usage is under the limit.
func (m *MemoryMonitor) CheckAvailable() bool {
	return m.usedBytes() < m.maxBytes
}

// UsagePercent returns heap usage as a percentage of the limit. May exceed
// 100 while the process is over budget.
func (m *MemoryMonitor) UsagePercent() float64 {
	return float64(m.usedBytes()) / float64(m.maxBytes) * 100
}

// Wait blocks until memory is available or the context is cancelled.
// Polling is retained here: unlike permits and tokens, heap usage has no
// release event to signal on.
func (m *MemoryMonitor) Wait(ctx context.Context) error {
	if m.CheckAvailable() {
		return nil
	}
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.CheckAvailable() {
				return nil
			}
		}
	}
}
