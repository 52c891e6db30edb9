// Package messaging is a small broker-agnostic publish/consume layer with
// drivers for Kafka, NATS, NSQ, Google Pub/Sub and an in-process memory bus.
package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnsupported is returned when the driver cannot honour a feature.
	ErrUnsupported = errors.New("messaging: unsupported operation")
	// ErrTopicRequired is returned for an empty topic, subject or subscription.
	ErrTopicRequired = errors.New("messaging: topic is required")
	// ErrHandlerRequired is returned when Consume gets a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
	// ErrGroupRequired is returned by drivers that need a consumer group.
	ErrGroupRequired = errors.New("messaging: consumer group is required")
)

// Messaging publishes and consumes.
type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

// Publisher sends messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer blocks delivering messages from topic to handler until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes one message. With auto ack, nil acks and an error nacks.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to publish.
type OutgoingMessage struct {
	Body []byte
	// Key selects the Kafka partition and the Pub/Sub ordering key.
	Key []byte
	// Headers travel as Kafka headers, NATS headers, Pub/Sub attributes, or
	// inside an envelope on NSQ which has no header support.
	Headers map[string]string
	// Delay defers delivery; only NSQ supports it.
	Delay time.Duration
}

// PublishResult carries what the broker reports back.
type PublishResult struct {
	MessageID string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

// Message is a received message.
type Message interface {
	ID() string
	Topic() string
	Body() []byte
	Key() []byte
	Headers() map[string]string
	Timestamp() time.Time
	// Attempts is the delivery count when the broker tracks it, otherwise 1.
	Attempts() int

	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}

// Header returns one header value, or "".
func Header(msg Message, key string) string {
	return msg.Headers()[key]
}
