package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors for circuit breaker outcomes.
// Use errors.Is() to check for these in calling code.
var (
	// ErrCircuitOpen is returned without invoking the wrapped function while
	// a breaker is open, or while a half-open trial is already in flight.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrCallTimeout marks a wrapped call that exceeded the breaker timeout.
	// The timeout counts as a breaker failure; the call is not retried.
	ErrCallTimeout = errors.New("circuit breaker call timed out")
)

// BreakerConfig tunes a single keyed breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that opens the breaker.
	FailureThreshold int
	// Timeout bounds each wrapped call; exceeding it counts as a failure.
	Timeout time.Duration
	// ResetTimeout is how long an open breaker waits before permitting one
	// half-open trial call.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig matches the defaults used for AI provider calls.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		ResetTimeout:     30 * time.Second,
	}
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type breaker struct {
	mu            sync.Mutex
	cfg           BreakerConfig
	state         breakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

// BreakerRegistry holds per-key circuit breakers. One registry is shared
// process-wide and injected into every caller, so breaker state outlives any
// single resource manager and tests can reset it per case.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*breaker
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*breaker)}
}

func (r *BreakerRegistry) get(key string, cfg BreakerConfig) *breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		if cfg.FailureThreshold < 1 {
			cfg.FailureThreshold = 1
		}
		b = &breaker{cfg: cfg}
		r.breakers[key] = b
	}
	return b
}

// State returns the breaker state for a key, for observability.
// Unknown keys report "closed".
func (r *BreakerRegistry) State(key string) string {
	r.mu.Lock()
	b, ok := r.breakers[key]
	r.mu.Unlock()
	if !ok {
		return stateClosed.String()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// Reset drops the breaker for a key, returning it to a fresh closed state.
func (r *BreakerRegistry) Reset(key string) {
	r.mu.Lock()
	delete(r.breakers, key)
	r.mu.Unlock()
}

// Do runs fn through the breaker registered under key, creating it with cfg
// on first use. While open, calls fail fast with ErrCircuitOpen. Each call
// races against cfg.Timeout; exceeding it returns ErrCallTimeout and counts
// as a failure.
func (r *BreakerRegistry) Do(ctx context.Context, key string, cfg BreakerConfig, fn func(context.Context) error) error {
	b := r.get(key, cfg)
	if err := b.allow(); err != nil {
		return fmt.Errorf("breaker %q: %w", key, err)
	}

	err := b.invoke(ctx, fn)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// Caller abandoned the call; do not count it against the dependency.
		b.abandon()
		return err
	}
	b.record(err == nil)
	return err
}

// allow decides whether a call may proceed, transitioning open breakers to
// half-open once the reset timeout has elapsed.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if timeNow().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.state = stateHalfOpen
		b.trialInFlight = true
		return nil
	case stateHalfOpen:
		if b.trialInFlight {
			return ErrCircuitOpen
		}
		b.trialInFlight = true
		return nil
	}
	return nil
}

// invoke runs fn bounded by the breaker timeout.
func (b *breaker) invoke(ctx context.Context, fn func(context.Context) error) error {
	timeout := b.cfg.Timeout
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in wrapped call: %v", r)
			}
		}()
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// Caller cancelled; not a dependency failure.
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s", ErrCallTimeout, timeout)
	}
}

// abandon clears a half-open trial slot without recording an outcome.
func (b *breaker) abandon() {
	b.mu.Lock()
	b.trialInFlight = false
	b.mu.Unlock()
}

func (b *breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if success {
		b.state = stateClosed
		b.failures = 0
		b.trialInFlight = false
		return
	}
	switch b.state {
	case stateHalfOpen:
		// Failed trial reopens the breaker and restarts the reset timer.
		b.state = stateOpen
		b.openedAt = timeNow()
		b.trialInFlight = false
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = stateOpen
			b.openedAt = timeNow()
			b.failures = 0
		}
	}
}
