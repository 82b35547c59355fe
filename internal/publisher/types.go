// internal/publisher/types.go
package publisher

import "context"

// Message is one topic/payload pair.
type Message struct {
	Topic   string
	Payload string
}

// Broker is the exact contract the publisher uses.
// One Send is one broker session: open, publish all, close.
type Broker interface {
	Send(ctx context.Context, msgs []Message) error
}
