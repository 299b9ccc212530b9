// Package queue provides the asynchronous delivery channel that triggers
// job routing. Delivery is fire-and-forget and at-least-once: a trigger may
// arrive more than once and carries no cross-job ordering guarantee.
package queue

import (
	"context"
	"time"
)

// Trigger is the delivery payload: a reference to the job to route.
type Trigger struct {
	JobID string `json:"jobId"`
}

// Channel publishes triggers for later delivery. A delay of zero requests
// immediate delivery.
type Channel interface {
	Publish(ctx context.Context, target string, trig Trigger, delay time.Duration) error
}

// HandlerFunc consumes a delivered trigger. Returning an error only affects
// logging; a failed trigger is not redelivered by the handler path because
// job failures are recorded durably by the router.
type HandlerFunc func(ctx context.Context, trig Trigger) error
