package eventing

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(ctx context.Context, event any) error

// EventBus delivers events to subscribed handlers.
type EventBus interface {
	Publish(ctx context.Context, event any) error
	Subscribe(eventType string, handler EventHandler)
	SubscribeConsumer(eventType, consumerName string, handler EventHandler, guard ProcessedStore)
}

// ProcessedStore records which consumer handled which event id, so a
// republished envelope reaches each consumer at most once.
type ProcessedStore interface {
	HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, consumerName string) error
}

// ErrNilEvent is returned when a nil event is published.
var ErrNilEvent = errors.New("eventing: nil event")

// ErrInvalidEventType is returned when the event type cannot be determined.
var ErrInvalidEventType = errors.New("eventing: invalid event type")

// subscription is one registered handler. consumer and guard stay empty
// for plain subscriptions, which receive every publish unconditionally.
type subscription struct {
	consumer string
	guard    ProcessedStore
	fn       EventHandler
}

// deliver runs the handler at most once per event id. Without a guard,
// or when the context carries no envelope, every publish goes through.
func (s subscription) deliver(ctx context.Context, event any) error {
	if s.guard == nil {
		return s.fn(ctx, event)
	}
	env, ok := EnvelopeFromContext(ctx)
	if !ok || env.EventID == "" {
		return s.fn(ctx, event)
	}
	done, err := s.guard.HasProcessed(ctx, env.EventID, s.consumer)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if err := s.fn(ctx, event); err != nil {
		return err
	}
	return s.guard.MarkProcessed(ctx, env.EventID, s.consumer)
}

// InMemoryBus is the in-process event bus. Dispatch is synchronous, in
// registration order; a failing subscription never blocks the rest, and
// their errors come back joined.
type InMemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]subscription
}

// NewInMemoryBus constructs an empty bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[string][]subscription)}
}

// Publish dispatches an event to every subscription of its type.
func (b *InMemoryBus) Publish(ctx context.Context, event any) error {
	if event == nil {
		return ErrNilEvent
	}
	key := EventType(event)
	if key == "" {
		return ErrInvalidEventType
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[key]))
	copy(subs, b.subs[key])
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.deliver(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a plain handler with no idempotency bookkeeping.
func (b *InMemoryBus) Subscribe(eventType string, handler EventHandler) {
	b.add(eventType, subscription{fn: handler})
}

// SubscribeConsumer registers a named consumer. With a non-nil guard,
// event ids already processed under consumerName are skipped and fresh
// ones are marked after the handler succeeds.
func (b *InMemoryBus) SubscribeConsumer(eventType, consumerName string, handler EventHandler, guard ProcessedStore) {
	b.add(eventType, subscription{consumer: consumerName, guard: guard, fn: handler})
}

func (b *InMemoryBus) add(eventType string, sub subscription) {
	if eventType == "" || sub.fn == nil {
		return
	}
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], sub)
	b.mu.Unlock()
}

// EventType returns the fully-qualified type name for an event instance.
func EventType(event any) string {
	if event == nil {
		return ""
	}
	t := reflect.TypeOf(event)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

// EventTypeOf returns the fully-qualified type name for a type parameter.
func EventTypeOf[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
