package message_broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/utils/log"
	"go.uber.org/zap"
)

// subscriberBuffer is how many undelivered messages a slow subscriber may hold
// before new ones are dropped for it.
const subscriberBuffer = 256

// ChannelMessageBroker implements MessageBroker using Go channels. Every
// subscriber of a topic and routing key gets its own copy of each message.
type ChannelMessageBroker struct {
	topics map[string]map[chan domain.Message]struct{}
	mu     sync.RWMutex
	closed bool
}

// NewChannelMessageBroker creates a new channel-based message broker
func NewChannelMessageBroker() *ChannelMessageBroker {
	return &ChannelMessageBroker{
		topics: make(map[string]map[chan domain.Message]struct{}),
	}
}

// makeKey creates a unique key for topic and routingKey
func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

// Publish fans message out without blocking. Keys nobody listens to swallow
// the message.
func (b *ChannelMessageBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("message broker is closed")
	}

	msg := domain.Message{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	subscribers := b.topics[makeKey(topic, routingKey)]
	for ch := range subscribers {
		select {
		case ch <- msg:
		default:
			log.WithCtx(ctx).Warn("Subscriber is full, dropping message",
				zap.String("topic", topic),
				zap.String("routingKey", routingKey))
		}
	}
	log.WithCtx(ctx).Debug("Message published to topic",
		zap.String("topic", topic),
		zap.String("routingKey", routingKey),
		zap.Int("subscribers", len(subscribers)),
		zap.Int("payload_size", len(message)))
	return nil
}

// Subscribe registers a new subscriber that lives until ctx is done.
func (b *ChannelMessageBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}

	key := makeKey(topic, routingKey)
	subscribers, exists := b.topics[key]
	if !exists {
		subscribers = make(map[chan domain.Message]struct{})
		b.topics[key] = subscribers
	}
	ch := make(chan domain.Message, subscriberBuffer)
	subscribers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.unsubscribe(key, ch)
	}()

	log.WithCtx(ctx).Debug("Subscribed to topic", zap.String("topic", topic), zap.String("routingKey", routingKey))
	return ch, nil
}

func (b *ChannelMessageBroker) unsubscribe(key string, ch chan domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.topics[key]
	if !ok {
		return
	}
	if _, ok := subscribers[ch]; !ok {
		return
	}
	delete(subscribers, ch)
	close(ch)
	if len(subscribers) == 0 {
		delete(b.topics, key)
	}
}

// Close closes the message broker and all subscriber channels
func (b *ChannelMessageBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	for key, subscribers := range b.topics {
		for ch := range subscribers {
			close(ch)
		}
		log.With(zap.String("key", key)).Debug("Closed topic subscribers")
	}

	b.topics = make(map[string]map[chan domain.Message]struct{})

	log.With().Info("Message broker closed")
	return nil
}

// GetTopicCount returns the number of topics with at least one subscriber
func (b *ChannelMessageBroker) GetTopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}

// IsClosed returns whether the broker is closed
func (b *ChannelMessageBroker) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
