package rabbitmq

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeLoopStopsCleanlyOnCancel(t *testing.T) {
	t.Parallel()

	c := &Consumer{tag: "worker-test-1", prefetch: 1}
	deliveries := make(chan amqp.Delivery)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- c.consumeLoop(ctx, deliveries, func(context.Context, GenerationMessage) error {
			return nil
		})
	}()

	cancel()

	select {
	case err := <-done:
		// Graceful shutdown must not be reported as a failure.
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consume loop did not stop on cancellation")
	}
}

func TestConsumeLoopReportsClosedDeliveryChannel(t *testing.T) {
	t.Parallel()

	c := &Consumer{tag: "worker-test-1", prefetch: 1}
	deliveries := make(chan amqp.Delivery)
	close(deliveries)

	err := c.consumeLoop(context.Background(), deliveries, func(context.Context, GenerationMessage) error {
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery channel closed")
}
