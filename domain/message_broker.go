package domain

import (
	"context"
	"time"
)

// TurnTopic carries TurnEvent payloads, routed by session id.
const TurnTopic = "chat.turns"

// MessageBroker defines the interface for message broker operations
type MessageBroker interface {
	// Publish sends a message to every subscriber of topic and routingKey
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens until ctx is done. The returned channel is closed
	// afterwards.
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan Message, error)

	// Close closes the message broker connection
	Close() error
}

// Message represents a message received from the broker
type Message struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}
