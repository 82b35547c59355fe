// internal/publisher/publisher.go
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/energy2mqtt/internal/registers"
)

// PublishError wraps a broker failure for one cycle.
type PublishError struct {
	Messages int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %d messages: %v", e.Messages, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Publisher turns measurements into topics under a fixed prefix.
type Publisher struct {
	prefix string
	broker Broker
}

// New creates a publisher. prefix must not contain MQTT wildcards.
func New(prefix string, broker Broker) (*Publisher, error) {
	if prefix == "" {
		return nil, errors.New("publisher: topic prefix required")
	}
	if strings.ContainsAny(prefix, "+#") {
		return nil, fmt.Errorf("publisher: topic prefix %q contains a wildcard", prefix)
	}
	if broker == nil {
		return nil, errors.New("publisher: broker required")
	}
	return &Publisher{prefix: prefix, broker: broker}, nil
}

// Publish sends value and unit topics for every measurement in one session.
func (p *Publisher) Publish(ctx context.Context, ms []registers.Measurement) error {
	msgs := Messages(p.prefix, ms)
	if len(msgs) == 0 {
		return nil
	}
	if err := p.broker.Send(ctx, msgs); err != nil {
		return &PublishError{Messages: len(msgs), Err: err}
	}
	return nil
}

// Messages lays out {prefix}/{id}/value and {prefix}/{id}/unit, in measurement order.
func Messages(prefix string, ms []registers.Measurement) []Message {
	out := make([]Message, 0, 2*len(ms))
	for _, m := range ms {
		base := prefix + "/" + m.ID
		out = append(out,
			Message{Topic: base + "/value", Payload: m.Value},
			Message{Topic: base + "/unit", Payload: m.Unit},
		)
	}
	return out
}
