package message_broaker

import "context"

// MessageBroker carries job outcome events to external consumers.
type MessageBroker interface {
	Publish(ctx context.Context, routingKey string, message []byte) error
	Consume(ctx context.Context, queue string) (<-chan []byte, error)
	Close() error
}
