package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MemoryChannel is an in-process delivery channel backed by timers. It is
// used by tests and by single-node deployments that run without a broker.
// Semantics match the AMQP channel: fire-and-forget, no ordering guarantee.
type MemoryChannel struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	timers   map[*time.Timer]struct{}
	closed   bool
	logger   *slog.Logger
}

// NewMemoryChannel creates an empty in-process channel.
func NewMemoryChannel(logger *slog.Logger) *MemoryChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryChannel{
		handlers: make(map[string]HandlerFunc),
		timers:   make(map[*time.Timer]struct{}),
		logger:   logger,
	}
}

// Subscribe registers the handler invoked for triggers published to target.
// The last registration for a target wins.
func (c *MemoryChannel) Subscribe(target string, fn HandlerFunc) {
	c.mu.Lock()
	c.handlers[target] = fn
	c.mu.Unlock()
}

// Publish schedules delivery of trig after delay. Publishing to a target
// with no subscriber is an error so misconfiguration surfaces early.
func (c *MemoryChannel) Publish(_ context.Context, target string, trig Trigger, delay time.Duration) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("memory channel closed")
	}
	fn, ok := c.handlers[target]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("no subscriber for target %q", target)
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		delete(c.timers, timer)
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("trigger handler panicked", "job_id", trig.JobID, "panic", r)
			}
		}()
		if err := fn(context.Background(), trig); err != nil {
			c.logger.Warn("trigger handler failed", "job_id", trig.JobID, "error", err)
		}
	})
	c.timers[timer] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Close stops pending deliveries.
func (c *MemoryChannel) Close() {
	c.mu.Lock()
	c.closed = true
	for timer := range c.timers {
		timer.Stop()
	}
	c.timers = make(map[*time.Timer]struct{})
	c.mu.Unlock()
}
