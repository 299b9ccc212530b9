package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains an AMQP work queue, dispatching triggers onto a bounded
// worker pool. Deliveries are acked after the handler returns: a handler
// failure is acked too because the router records the failure durably, while
// a process crash leaves the message unacked for redelivery (at-least-once).
type Consumer struct {
	ch      *AMQPChannel
	pool    *ants.Pool
	handler HandlerFunc
	logger  *slog.Logger
}

// NewConsumer creates a consumer with the given worker pool size.
func NewConsumer(ch *AMQPChannel, workers int, handler HandlerFunc, logger *slog.Logger) (*Consumer, error) {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Consumer{ch: ch, pool: pool, handler: handler, logger: logger}, nil
}

// Run consumes target until the context is cancelled or the delivery stream
// closes.
func (c *Consumer) Run(ctx context.Context, target string) error {
	deliveries, err := c.ch.Consume(target)
	if err != nil {
		return err
	}
	c.logger.Info("consumer started", "target", target, "workers", c.pool.Cap())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery stream closed", "target", target)
				return nil
			}
			delivery := d
			if err := c.pool.Submit(func() {
				c.process(ctx, delivery)
			}); err != nil {
				c.logger.Error("failed to submit delivery to pool", "error", err)
				_ = delivery.Nack(false, true)
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("trigger processing panicked", "panic", r)
			_ = d.Ack(false)
		}
	}()

	var trig Trigger
	if err := json.Unmarshal(d.Body, &trig); err != nil {
		c.logger.Error("malformed trigger payload", "error", err)
		_ = d.Ack(false)
		return
	}

	if err := c.handler(ctx, trig); err != nil {
		c.logger.Warn("trigger handling failed", "job_id", trig.JobID, "error", err)
	}
	_ = d.Ack(false)
}

// Release shuts down the worker pool.
func (c *Consumer) Release() {
	c.pool.Release()
}
