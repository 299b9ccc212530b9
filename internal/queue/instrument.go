package queue

import (
	"context"
	"time"

	"knograph/internal/metrics"
)

// InstrumentedChannel wraps a Channel and records the duration of every
// publish call.
type InstrumentedChannel struct {
	Inner     Channel
	Collector *metrics.Collector
}

// Publish forwards to the wrapped channel and records the call timing.
func (c *InstrumentedChannel) Publish(ctx context.Context, target string, trig Trigger, delay time.Duration) error {
	start := time.Now()
	err := c.Inner.Publish(ctx, target, trig, delay)
	if c.Collector != nil {
		c.Collector.RecordTiming(metrics.OpPublish, time.Since(start))
	}
	return err
}

var _ Channel = (*InstrumentedChannel)(nil)
