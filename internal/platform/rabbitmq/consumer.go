package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lingotrail/trail-api/internal/platform/logger"
)

// GenerationHandler processes one generation message. A nil return acks the
// delivery. A non-nil return nacks it without requeue, which dead-letters the
// message; retries go through the database scheduler, not broker redelivery,
// so a poisoned message can never loop.
type GenerationHandler func(ctx context.Context, msg GenerationMessage) error

// Consumer consumes generation messages from the broker and dispatches them
// to a handler one at a time.
type Consumer struct {
	ch       *amqp.Channel
	tag      string
	prefetch int
}

// NewConsumer creates a Consumer over an open channel. The consumer tag
// identifies this worker on the broker; prefetch bounds unacked deliveries.
func NewConsumer(ch *amqp.Channel, tag string, prefetch int) *Consumer {
	return &Consumer{ch: ch, tag: tag, prefetch: prefetch}
}

// Consume reads generation messages until the context is cancelled or the
// delivery channel closes (broker connection loss). Malformed messages are
// dead-lettered immediately; they can never succeed on redelivery.
func (c *Consumer) Consume(ctx context.Context, handler GenerationHandler) error {
	log := logger.FromContext(ctx)

	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set channel prefetch: %w", err)
	}

	deliveries, err := c.ch.ConsumeWithContext(
		ctx,
		GenerationQueue,
		c.tag,
		false, // auto-ack off; ack only after the job row is finalized
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", GenerationQueue, err)
	}

	log.Info("consuming generation messages", "queue", GenerationQueue, "consumer_tag", c.tag)

	return c.consumeLoop(ctx, deliveries, handler)
}

// consumeLoop dispatches deliveries until the context is cancelled or the
// delivery channel closes. Cancellation is the normal shutdown path and
// returns nil; a closed channel means the broker connection was lost.
func (c *Consumer) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, handler GenerationHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s", GenerationQueue)
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler GenerationHandler) {
	log := logger.FromContext(ctx)

	var msg GenerationMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		log.Error("dead-lettering malformed generation message",
			"message_id", delivery.MessageId,
			"error", err)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			log.Error("failed to nack malformed message", "error", nackErr)
		}
		return
	}

	if err := handler(ctx, msg); err != nil {
		log.Error("generation handler failed",
			"job_id", msg.JobID,
			"trail_id", msg.TrailID,
			"error", err)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", "job_id", msg.JobID, "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		log.Error("failed to ack message", "job_id", msg.JobID, "error", err)
	}
}
