package application

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	directory "child-monitoring/internal/directory/domain"
	"child-monitoring/internal/monitoring/application/events"
	monitoring "child-monitoring/internal/monitoring/domain"
	registrymem "child-monitoring/internal/monitoring/infrastructure/memory"
)

var school = monitoring.Coordinate{Lat: -7.250445, Lng: 112.768845}

type stubMappings struct {
	mappings []directory.RecipientMapping
}

func (s *stubMappings) ListByChild(ctx context.Context, childID string) ([]directory.RecipientMapping, error) {
	return s.mappings, nil
}

func (s *stubMappings) List(ctx context.Context) ([]directory.RecipientMapping, error) {
	return s.mappings, nil
}

func (s *stubMappings) Save(ctx context.Context, mapping *directory.RecipientMapping) error {
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []any
}

func (b *recordingBus) Publish(ctx context.Context, event any) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
	return nil
}

func (b *recordingBus) zoneChanges() []events.ZoneChanged {
	b.mu.Lock()
	defer b.mu.Unlock()
	var result []events.ZoneChanged
	for _, event := range b.events {
		if evt, ok := event.(events.ZoneChanged); ok {
			result = append(result, evt)
		}
	}
	return result
}

func (b *recordingBus) last() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	return b.events[len(b.events)-1]
}

// sampleAtKM builds a sample north of the school at the given distance.
func sampleAtKM(recipientID, childID string, km float64) LocationSample {
	return LocationSample{
		RecipientID: recipientID,
		ChildID:     childID,
		Lat:         school.Lat + (km/6371.0)*(180/math.Pi),
		Lng:         school.Lng,
	}
}

func newTestService(t *testing.T, bus *recordingBus) *Service {
	t.Helper()
	fence, err := monitoring.NewGeofence(school, 1.0, 0.1)
	if err != nil {
		t.Fatalf("geofence: %v", err)
	}
	mappings := &stubMappings{mappings: []directory.RecipientMapping{
		{RecipientID: "chat-parent", ChildID: "child-1", Role: directory.RoleParent, Active: true},
	}}
	service, err := NewService(registrymem.NewSessionRegistry(), mappings, fence, bus, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestStartMonitoring_RequiresActiveMapping(t *testing.T) {
	bus := &recordingBus{}
	service := newTestService(t, bus)
	ctx := context.Background()

	session, err := service.StartMonitoring(ctx, "chat-parent", "child-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Zone != monitoring.ZoneFar {
		t.Fatalf("expected FAR on start, got %s", session.Zone)
	}
	if _, ok := bus.last().(events.SessionStarted); !ok {
		t.Fatalf("expected SessionStarted event, got %T", bus.last())
	}

	if _, err := service.StartMonitoring(ctx, "chat-stranger", "child-1"); !errors.Is(err, ErrNoMapping) {
		t.Fatalf("expected ErrNoMapping, got %v", err)
	}
}

func TestHandleLocationSample_ZoneProgression(t *testing.T) {
	bus := &recordingBus{}
	service := newTestService(t, bus)
	ctx := context.Background()
	if _, err := service.StartMonitoring(ctx, "chat-parent", "child-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Far away: no transition, session already FAR.
	result, err := service.HandleLocationSample(ctx, sampleAtKM("chat-parent", "child-1", 5))
	if err != nil {
		t.Fatalf("sample 5km: %v", err)
	}
	if result.Zone != monitoring.ZoneFar || result.Transitioned {
		t.Fatalf("expected quiet FAR at 5km, got %+v", result)
	}

	// Crossing into NEAR.
	result, err = service.HandleLocationSample(ctx, sampleAtKM("chat-parent", "child-1", 0.5))
	if err != nil {
		t.Fatalf("sample 0.5km: %v", err)
	}
	if result.Zone != monitoring.ZoneNear || !result.Transitioned {
		t.Fatalf("expected FAR to NEAR, got %+v", result)
	}

	// Crossing into ARRIVED.
	result, err = service.HandleLocationSample(ctx, sampleAtKM("chat-parent", "child-1", 0.05))
	if err != nil {
		t.Fatalf("sample 0.05km: %v", err)
	}
	if result.Zone != monitoring.ZoneArrived || !result.Transitioned {
		t.Fatalf("expected NEAR to ARRIVED, got %+v", result)
	}

	// Regression back to FAR still emits a transition event.
	result, err = service.HandleLocationSample(ctx, sampleAtKM("chat-parent", "child-1", 1.5))
	if err != nil {
		t.Fatalf("sample 1.5km: %v", err)
	}
	if result.Zone != monitoring.ZoneFar || !result.Transitioned {
		t.Fatalf("expected regression to FAR, got %+v", result)
	}

	changes := bus.zoneChanges()
	if len(changes) != 3 {
		t.Fatalf("expected 3 zone change events, got %d", len(changes))
	}
	if changes[0].From != monitoring.ZoneFar || changes[0].To != monitoring.ZoneNear {
		t.Fatalf("expected FAR to NEAR first, got %+v", changes[0])
	}
	if changes[1].To != monitoring.ZoneArrived {
		t.Fatalf("expected ARRIVED second, got %+v", changes[1])
	}
	if changes[2].To != monitoring.ZoneFar {
		t.Fatalf("expected FAR regression last, got %+v", changes[2])
	}
}

func TestHandleLocationSample_RecrossingEmitsAgain(t *testing.T) {
	bus := &recordingBus{}
	service := newTestService(t, bus)
	ctx := context.Background()
	if _, err := service.StartMonitoring(ctx, "chat-parent", "child-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	steps := []float64{0.5, 1.5, 0.5}
	for _, km := range steps {
		if _, err := service.HandleLocationSample(ctx, sampleAtKM("chat-parent", "child-1", km)); err != nil {
			t.Fatalf("sample %vkm: %v", km, err)
		}
	}

	changes := bus.zoneChanges()
	if len(changes) != 3 {
		t.Fatalf("expected 3 events for enter, leave, re-enter, got %d", len(changes))
	}
	if changes[2].From != monitoring.ZoneFar || changes[2].To != monitoring.ZoneNear {
		t.Fatalf("expected re-entry FAR to NEAR, got %+v", changes[2])
	}
}

func TestHandleLocationSample_FirstSampleInsideArrival(t *testing.T) {
	bus := &recordingBus{}
	service := newTestService(t, bus)
	ctx := context.Background()
	if _, err := service.StartMonitoring(ctx, "chat-parent", "child-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := service.HandleLocationSample(ctx, sampleAtKM("chat-parent", "child-1", 0.05))
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if result.PreviousZone != monitoring.ZoneFar || result.Zone != monitoring.ZoneArrived {
		t.Fatalf("expected FAR to ARRIVED on first sample, got %+v", result)
	}
	changes := bus.zoneChanges()
	if len(changes) != 1 {
		t.Fatalf("expected a single event, got %d", len(changes))
	}
}

func TestHandleLocationSample_InvalidCoordinates(t *testing.T) {
	bus := &recordingBus{}
	service := newTestService(t, bus)
	ctx := context.Background()
	if _, err := service.StartMonitoring(ctx, "chat-parent", "child-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err := service.HandleLocationSample(ctx, LocationSample{RecipientID: "chat-parent", ChildID: "child-1", Lat: 95, Lng: 0})
	if !errors.Is(err, monitoring.ErrInvalidSample) {
		t.Fatalf("expected ErrInvalidSample, got %v", err)
	}

	status, err := service.Status(ctx, "chat-parent", "child-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Zone != monitoring.ZoneFar || !status.LastSampleAt.IsZero() {
		t.Fatalf("expected untouched session after invalid sample, got %+v", status)
	}
}

func TestHandleLocationSample_NoSession(t *testing.T) {
	bus := &recordingBus{}
	service := newTestService(t, bus)

	_, err := service.HandleLocationSample(context.Background(), sampleAtKM("chat-parent", "child-1", 0.5))
	if !errors.Is(err, monitoring.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestConfirmPickup(t *testing.T) {
	bus := &recordingBus{}
	service := newTestService(t, bus)
	ctx := context.Background()
	if _, err := service.StartMonitoring(ctx, "chat-parent", "child-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Declined: session stays, router is asked to repeat the prompt.
	if err := service.ConfirmPickup(ctx, "chat-parent", "child-1", false); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, ok := bus.last().(events.PickupDeclined); !ok {
		t.Fatalf("expected PickupDeclined, got %T", bus.last())
	}
	if status, _ := service.Status(ctx, "chat-parent", "child-1"); status == nil {
		t.Fatal("expected session to survive a declined pickup")
	}

	// Confirmed: session ends.
	if err := service.ConfirmPickup(ctx, "chat-parent", "child-1", true); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	ended, ok := bus.last().(events.SessionEnded)
	if !ok {
		t.Fatalf("expected SessionEnded, got %T", bus.last())
	}
	if ended.Reason != events.EndReasonPickupConfirmed {
		t.Fatalf("expected pickup_confirmed reason, got %s", ended.Reason)
	}
	if status, _ := service.Status(ctx, "chat-parent", "child-1"); status != nil {
		t.Fatal("expected session to end after confirmation")
	}

	if err := service.ConfirmPickup(ctx, "chat-parent", "child-1", true); !errors.Is(err, monitoring.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStopMonitoring_Noop(t *testing.T) {
	bus := &recordingBus{}
	service := newTestService(t, bus)

	session, err := service.StopMonitoring(context.Background(), "chat-parent", "child-1")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if session != nil {
		t.Fatalf("expected nil for stopping without session, got %+v", session)
	}
	if bus.last() != nil {
		t.Fatalf("expected no event for a no-op stop, got %T", bus.last())
	}
}

func TestHandleLocationSample_SameZonePersistsBookkeeping(t *testing.T) {
	bus := &recordingBus{}
	service := newTestService(t, bus)
	ctx := context.Background()
	if _, err := service.StartMonitoring(ctx, "chat-parent", "child-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	sample := sampleAtKM("chat-parent", "child-1", 0.5)
	sample.ObservedAt = time.Date(2025, 3, 10, 6, 40, 0, 0, time.UTC)
	if _, err := service.HandleLocationSample(ctx, sample); err != nil {
		t.Fatalf("first sample: %v", err)
	}

	later := sampleAtKM("chat-parent", "child-1", 0.4)
	later.ObservedAt = sample.ObservedAt.Add(15 * time.Second)
	result, err := service.HandleLocationSample(ctx, later)
	if err != nil {
		t.Fatalf("second sample: %v", err)
	}
	if result.Transitioned {
		t.Fatalf("expected no transition within NEAR, got %+v", result)
	}

	status, err := service.Status(ctx, "chat-parent", "child-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.LastSampleAt.Equal(later.ObservedAt) {
		t.Fatalf("expected bookkeeping refresh, got %+v", status)
	}
	if len(bus.zoneChanges()) != 1 {
		t.Fatalf("expected one event total, got %d", len(bus.zoneChanges()))
	}
}
