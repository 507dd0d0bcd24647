package eventing

import (
	"context"
	"errors"
	"testing"
	"time"
)

type pingEvent struct {
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
}

func TestInMemoryBus_PublishToSubscribers(t *testing.T) {
	bus := NewInMemoryBus()
	var got []string
	bus.Subscribe(EventTypeOf[pingEvent](), func(ctx context.Context, event any) error {
		evt, ok := event.(pingEvent)
		if !ok {
			return ErrInvalidEventType
		}
		got = append(got, evt.Name)
		return nil
	})

	if err := bus.Publish(context.Background(), pingEvent{Name: "a"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(context.Background(), pingEvent{Name: "b"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestInMemoryBus_NilEvent(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}

func TestPublisher_AttachesEnvelope(t *testing.T) {
	bus := NewInMemoryBus()
	publisher, err := NewPublisher(bus)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	var env Envelope
	var sawEnvelope bool
	bus.Subscribe(EventTypeOf[pingEvent](), func(ctx context.Context, event any) error {
		env, sawEnvelope = EnvelopeFromContext(ctx)
		return nil
	})

	occurred := time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC)
	if err := publisher.Publish(context.Background(), pingEvent{Name: "x", OccurredAt: occurred}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !sawEnvelope {
		t.Fatal("expected envelope in handler context")
	}
	if env.EventID == "" {
		t.Fatal("expected generated event id")
	}
	if env.EventType != EventTypeOf[pingEvent]() {
		t.Fatalf("expected event type %s, got %s", EventTypeOf[pingEvent](), env.EventType)
	}
	if !env.OccurredAt.Equal(occurred) {
		t.Fatalf("expected occurred at from event field, got %v", env.OccurredAt)
	}
}

func TestSubscribeConsumer_IdempotentPerConsumer(t *testing.T) {
	bus := NewInMemoryBus()
	store := &memProcessed{seen: map[string]bool{}}

	guarded := 0
	bus.SubscribeConsumer(EventTypeOf[pingEvent](), "test.consumer", func(ctx context.Context, event any) error {
		guarded++
		return nil
	}, store)

	plain := 0
	bus.Subscribe(EventTypeOf[pingEvent](), func(ctx context.Context, event any) error {
		plain++
		return nil
	})

	env, err := BuildEnvelope(pingEvent{Name: "x"}, Meta{EventID: "evt-1"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	ctx := WithEnvelope(context.Background(), env)

	if err := bus.Publish(ctx, pingEvent{Name: "x"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(ctx, pingEvent{Name: "x"}); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if guarded != 1 {
		t.Fatalf("expected 1 guarded call, got %d", guarded)
	}
	if plain != 2 {
		t.Fatalf("expected plain subscription to see both publishes, got %d", plain)
	}
}

func TestSubscribeConsumer_GuardIsPerConsumerName(t *testing.T) {
	bus := NewInMemoryBus()
	store := &memProcessed{seen: map[string]bool{}}

	var order []string
	for _, name := range []string{"consumer.a", "consumer.b"} {
		name := name
		bus.SubscribeConsumer(EventTypeOf[pingEvent](), name, func(ctx context.Context, event any) error {
			order = append(order, name)
			return nil
		}, store)
	}

	env, err := BuildEnvelope(pingEvent{Name: "x"}, Meta{EventID: "evt-2"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	ctx := WithEnvelope(context.Background(), env)
	if err := bus.Publish(ctx, pingEvent{Name: "x"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(order) != 2 || order[0] != "consumer.a" || order[1] != "consumer.b" {
		t.Fatalf("expected both consumers in order, got %v", order)
	}
}

func TestPublish_FailingSubscriptionDoesNotBlockOthers(t *testing.T) {
	bus := NewInMemoryBus()
	boom := errors.New("boom")

	bus.Subscribe(EventTypeOf[pingEvent](), func(ctx context.Context, event any) error {
		return boom
	})
	delivered := 0
	bus.Subscribe(EventTypeOf[pingEvent](), func(ctx context.Context, event any) error {
		delivered++
		return nil
	})

	err := bus.Publish(context.Background(), pingEvent{Name: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined handler error, got %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected second subscription to run, got %d", delivered)
	}
}

type memProcessed struct {
	seen map[string]bool
}

func (m *memProcessed) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	return m.seen[consumerName+"|"+eventID], nil
}

func (m *memProcessed) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	m.seen[consumerName+"|"+eventID] = true
	return nil
}
