// Package resource provides the concurrency primitives that gate pipeline
// work: a FIFO semaphore, a token-bucket rate limiter, a heap backpressure
// monitor, and a keyed circuit breaker registry.
package resource

import (
	"context"
	"sync"
)

// Semaphore caps concurrent task execution at a fixed permit count.
// Waiters are woken in strict FIFO arrival order. A waiter may abandon its
// wait through context cancellation; the queue position is given up cleanly.
type Semaphore struct {
	mu      sync.Mutex
	free    int
	waiters []chan struct{}
}

// NewSemaphore creates a semaphore with the given permit count (minimum 1).
func NewSemaphore(permits int) *Semaphore {
	if permits < 1 {
		permits = 1
	}
	return &Semaphore{free: permits}
}

// Acquire obtains a permit, blocking in FIFO order behind earlier waiters.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.free > 0 {
		s.free--
		s.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == ready {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Unlock()
		// Already granted while cancelling; hand the permit back so the
		// next waiter is not starved.
		s.Release()
		return ctx.Err()
	}
}

// Release returns a permit. If waiters exist the oldest one is woken and the
// permit is handed off directly, preserving FIFO order.
func (s *Semaphore) Release() {
	s.mu.Lock()
	if len(s.waiters) > 0 {
		ready := s.waiters[0]
		s.waiters = s.waiters[1:]
		s.mu.Unlock()
		close(ready)
		return
	}
	s.free++
	s.mu.Unlock()
}

// Do runs fn under a permit. The permit is released whether fn succeeds,
// fails, or panics.
func (s *Semaphore) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer s.Release()
	return fn(ctx)
}

// Available returns the number of free permits.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.free
}

// Waiting returns the number of queued waiters.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
