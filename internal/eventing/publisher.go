package eventing

import (
	"context"
	"errors"
)

// Publisher stamps an envelope onto the context and delivers the event over
// the bus. Delivery is in-process and synchronous; handler errors surface to
// the caller and are never retried.
type Publisher struct {
	bus EventBus
}

// NewPublisher constructs a publisher.
func NewPublisher(bus EventBus) (*Publisher, error) {
	if bus == nil {
		return nil, errors.New("eventing: nil bus")
	}
	return &Publisher{bus: bus}, nil
}

// Publish builds the envelope and dispatches the event.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.bus == nil {
		return errors.New("eventing: nil publisher")
	}
	env, err := BuildEnvelope(event, MetaFromContext(ctx))
	if err != nil {
		return err
	}
	return p.bus.Publish(WithEnvelope(ctx, env), event)
}
