package resource

import (
	"context"

	"knograph/internal/models"
)

// Manager composes the concurrency primitives for one job-processing
// context. Each job gets its own Manager built from its own resource limits;
// concurrent jobs hold independent budgets. Circuit breaker state is the
// exception: it lives in the shared BreakerRegistry, not here.
type Manager struct {
	limits models.ResourceLimits
	dbSem  *Semaphore
	aiSem  *Semaphore
	rate   *RateLimiter
	mem    *MemoryMonitor
}

// aiRefillRate is the token-bucket refill for AI calls, in tokens per second.
const aiRefillRate = 1.0

// NewManager builds a manager from per-job resource limits.
func NewManager(limits models.ResourceLimits) *Manager {
	return &Manager{
		limits: limits,
		dbSem:  NewSemaphore(limits.MaxConnections),
		aiSem:  NewSemaphore(limits.MaxAICalls),
		rate:   NewRateLimiter(limits.MaxAICalls, aiRefillRate),
		mem:    NewMemoryMonitor(limits.MaxMemoryMB),
	}
}

// WithDatabase runs op under a database connection permit.
func (m *Manager) WithDatabase(ctx context.Context, op func(context.Context) error) error {
	return m.dbSem.Do(ctx, op)
}

// WithAI runs op behind the three AI gates in order: memory backpressure,
// rate-limit tokens, then an AI call permit. All three must pass before op
// runs.
func (m *Manager) WithAI(ctx context.Context, op func(context.Context) error) error {
	if err := m.mem.Wait(ctx); err != nil {
		return err
	}
	if err := m.rate.Acquire(ctx, 1); err != nil {
		return err
	}
	return m.aiSem.Do(ctx, op)
}

// Status is a point-in-time view of manager capacity, exposed for
// observability only; nothing inside the manager decides based on it.
type Status struct {
	DatabaseAvailable int
	DatabaseWaiting   int
	AIAvailable       int
	AIWaiting         int
	RateTokens        int
	MemoryUsedPercent float64
}

// Status returns current capacity counters.
func (m *Manager) Status() Status {
	return Status{
		DatabaseAvailable: m.dbSem.Available(),
		DatabaseWaiting:   m.dbSem.Waiting(),
		AIAvailable:       m.aiSem.Available(),
		AIWaiting:         m.aiSem.Waiting(),
		RateTokens:        m.rate.Tokens(),
		MemoryUsedPercent: m.mem.UsagePercent(),
	}
}

// Limits returns the limits this manager was built with.
func (m *Manager) Limits() models.ResourceLimits {
	return m.limits
}
