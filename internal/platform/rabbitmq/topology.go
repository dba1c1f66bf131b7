package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker topology names and message TTLs. Workers and the API server declare
// the same topology on startup; declaration is idempotent as long as the
// arguments match.
const (
	ExchangeName = "trail.exchange"

	GenerationQueue   = "trail.generation.queue"
	GenerationDLQ     = "trail.generation.dlq"
	NotificationQueue = "trail.notification.queue"

	GenerationRoutingKey    = "trail.generation"
	GenerationDLQRoutingKey = "trail.generation.dlq"
	NotificationRoutingKey  = "trail.notification"

	// generationMessageTTLMs bounds how long an unconsumed generation message
	// sits in the main queue before dead-lettering.
	generationMessageTTLMs = 300000

	// dlqMessageTTLMs keeps dead-lettered messages a day for inspection.
	dlqMessageTTLMs = 86400000

	// notificationMessageTTLMs drops stale notifications quickly; a readiness
	// notification has no value a minute later.
	notificationMessageTTLMs = 60000
)

// DeclareTopology declares the exchange, queues, and bindings on the given
// channel. Messages in the generation queue that expire or are rejected are
// routed back through the exchange to the dead-letter queue.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}

	if _, err := ch.QueueDeclare(
		GenerationQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    ExchangeName,
			"x-dead-letter-routing-key": GenerationDLQRoutingKey,
			"x-message-ttl":             int32(generationMessageTTLMs),
		},
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", GenerationQueue, err)
	}

	if _, err := ch.QueueDeclare(
		GenerationDLQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-message-ttl": int32(dlqMessageTTLMs),
		},
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", GenerationDLQ, err)
	}

	if _, err := ch.QueueDeclare(
		NotificationQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-message-ttl": int32(notificationMessageTTLMs),
		},
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", NotificationQueue, err)
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{GenerationQueue, GenerationRoutingKey},
		{GenerationDLQ, GenerationDLQRoutingKey},
		{NotificationQueue, NotificationRoutingKey},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.routingKey, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", b.queue, err)
		}
	}

	return nil
}
