package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPChannel is a RabbitMQ-backed delivery channel. Delayed delivery uses a
// per-target wait queue whose messages expire into the work queue through a
// dead-letter binding, so no consumer ever sees a trigger before its delay
// has elapsed.
type AMQPChannel struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects to the broker at url.
func DialAMQP(url string) (*AMQPChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQPChannel{conn: conn, ch: ch}, nil
}

func delayQueueName(target string) string {
	return target + ".delay"
}

// DeclareTarget declares the durable work queue for target and its paired
// delay queue. Call once per target before publishing or consuming.
func (c *AMQPChannel) DeclareTarget(target string) error {
	if _, err := c.ch.QueueDeclare(target, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", target, err)
	}
	// Expired messages dead-letter into the work queue via the default
	// exchange, whose routing key is the queue name.
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": target,
	}
	if _, err := c.ch.QueueDeclare(delayQueueName(target), true, false, false, false, args); err != nil {
		return fmt.Errorf("declare delay queue for %s: %w", target, err)
	}
	return nil
}

// Publish enqueues trig for delivery to target after delay.
func (c *AMQPChannel) Publish(ctx context.Context, target string, trig Trigger, delay time.Duration) error {
	body, err := json.Marshal(trig)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}

	routingKey := target
	if delay > 0 {
		routingKey = delayQueueName(target)
		pub.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	if err := c.ch.PublishWithContext(ctx, "", routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish trigger: %w", err)
	}
	return nil
}

// Consume opens a delivery stream for target.
func (c *AMQPChannel) Consume(target string) (<-chan amqp.Delivery, error) {
	deliveries, err := c.ch.Consume(target, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", target, err)
	}
	return deliveries, nil
}

// Close releases the channel and connection.
func (c *AMQPChannel) Close() error {
	if err := c.ch.Close(); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
