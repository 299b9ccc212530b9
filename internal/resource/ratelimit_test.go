package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterDebitsTokens(t *testing.T) {
	l := NewRateLimiter(4, 1)

	assert.Equal(t, 4, l.Tokens())
	require.NoError(t, l.Acquire(context.Background(), 3))
	assert.LessOrEqual(t, l.Tokens(), 1)
}

func TestRateLimiterRefills(t *testing.T) {
	// 20 tokens/sec so the test stays fast.
	l := NewRateLimiter(2, 20)

	require.True(t, l.Allow(2))
	assert.Equal(t, 0, l.Tokens())

	// After ~150ms at 20/s the bucket has refilled to its cap of 2.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, l.Tokens(), "tokens must refill up to maxTokens and no further")
}

func TestRateLimiterAcquireBlocksUntilAvailable(t *testing.T) {
	l := NewRateLimiter(1, 10)
	require.True(t, l.Allow(1))

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background(), 1))
	// One token at 10/s needs ~100ms.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond,
		"acquire must not return before a token was refilled")
}

func TestRateLimiterRejectsOversizedRequest(t *testing.T) {
	l := NewRateLimiter(2, 1)
	err := l.Acquire(context.Background(), 3)
	assert.Error(t, err)
}

func TestRateLimiterAcquireCancellation(t *testing.T) {
	l := NewRateLimiter(1, 0.1)
	require.True(t, l.Allow(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, 1)
	assert.Error(t, err)
}
