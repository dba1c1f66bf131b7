package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/platform/logger"
)

// channelPublisher is the subset of *amqp.Channel the publisher needs.
// Narrowing the dependency keeps the publisher testable without a broker.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher publishes generation jobs and trail notifications to the broker.
type Publisher struct {
	ch channelPublisher
}

// NewPublisher creates a Publisher over an open channel. The topology must
// already be declared.
func NewPublisher(ch channelPublisher) *Publisher {
	return &Publisher{ch: ch}
}

// PublishGeneration publishes a generation message for the job. Messages are
// persistent so a broker restart does not lose queued work; the job row in the
// database remains the recovery source either way.
func (p *Publisher) PublishGeneration(ctx context.Context, j *domain.TrailGenerationJob) error {
	log := logger.FromContext(ctx)

	body, err := json.Marshal(NewGenerationMessage(j))
	if err != nil {
		return fmt.Errorf("failed to marshal generation message: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, ExchangeName, GenerationRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    j.ID.String(),
		Priority:     clampPriority(j.Priority),
		Body:         body,
	})
	if err != nil {
		log.Error("failed to publish generation message", "job_id", j.ID, "error", err)
		return fmt.Errorf("failed to publish generation message: %w", err)
	}

	log.Debug("published generation message",
		"job_id", j.ID,
		"trail_id", j.TrailID,
		"job_type", j.JobType)
	return nil
}

// PublishNotification publishes a trail status notification. Notifications are
// transient; a lost one is recovered the next time the client polls.
func (p *Publisher) PublishNotification(ctx context.Context, msg NotificationMessage) error {
	log := logger.FromContext(ctx)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification message: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, ExchangeName, NotificationRoutingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		log.Error("failed to publish notification", "trail_id", msg.TrailID, "error", err)
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// clampPriority fits a job priority into AMQP's 0..9 message priority range.
func clampPriority(priority int) uint8 {
	if priority < 0 {
		return 0
	}
	if priority > 9 {
		return 9
	}
	return uint8(priority)
}
