// Package rabbitmq provides the broker layer for trail generation: topology
// declaration, message publishing, and consumption. The topology is a single
// durable direct exchange with a dead-letter queue for messages that exhaust
// their queue TTL or are rejected by a worker.
package rabbitmq
