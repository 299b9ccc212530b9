package resource

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket: the budget refills continuously at
// refillRate tokens per second up to maxTokens. Acquire blocks until the
// requested tokens are available; blocked callers are woken by the limiter
// rather than by polling. No ordering is guaranteed among concurrently
// blocked callers.
type RateLimiter struct {
	limiter   *rate.Limiter
	maxTokens int
}

// NewRateLimiter creates a token bucket holding at most maxTokens, refilled
// at refillRate tokens per second.
func NewRateLimiter(maxTokens int, refillRate float64) *RateLimiter {
	if maxTokens < 1 {
		maxTokens = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(refillRate), maxTokens),
		maxTokens: maxTokens,
	}
}

// Acquire blocks until n tokens are available, then debits them.
func (l *RateLimiter) Acquire(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	if n > l.maxTokens {
		return fmt.Errorf("requested %d tokens exceeds bucket capacity %d", n, l.maxTokens)
	}
	if err := l.limiter.WaitN(ctx, n); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Allow debits n tokens without blocking, reporting whether they were
// available.
func (l *RateLimiter) Allow(n int) bool {
	if n < 1 {
		n = 1
	}
	return l.limiter.AllowN(timeNow(), n)
}

// Tokens returns the whole tokens currently available, for observability.
func (l *RateLimiter) Tokens() int {
	t := int(l.limiter.Tokens())
	if t > l.maxTokens {
		t = l.maxTokens
	}
	if t < 0 {
		t = 0
	}
	return t
}

// MaxTokens returns the bucket capacity.
func (l *RateLimiter) MaxTokens() int {
	return l.maxTokens
}
