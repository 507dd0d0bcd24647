package application

import (
	"context"
	"errors"
	"log"
	"time"

	directory "child-monitoring/internal/directory/domain"
	"child-monitoring/internal/monitoring/application/events"
	monitoring "child-monitoring/internal/monitoring/domain"
	"child-monitoring/internal/observability/metrics"
)

// ErrNoMapping marks a start request for a pair the directory does not know.
var ErrNoMapping = errors.New("monitoring: no active mapping for recipient and child")

// EventPublisher delivers domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// LocationSample is one GPS fix from a recipient's phone.
type LocationSample struct {
	RecipientID string
	ChildID     string
	Lat         float64
	Lng         float64
	ObservedAt  time.Time
}

// SampleResult reports the classification outcome of one sample.
type SampleResult struct {
	SessionID    string
	Zone         monitoring.Zone
	PreviousZone monitoring.Zone
	DistanceKM   float64
	Transitioned bool
}

// Service runs the proximity engine and the session lifecycle.
type Service struct {
	registry monitoring.SessionRegistry
	mappings directory.MappingRepository
	fence    monitoring.Geofence
	bus      EventPublisher
	logger   *log.Logger
	clock    Clock
}

// ServiceOption customizes the monitor service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a monitor service.
func NewService(registry monitoring.SessionRegistry, mappings directory.MappingRepository, fence monitoring.Geofence, bus EventPublisher, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if registry == nil {
		return nil, errors.New("monitoring: nil registry")
	}
	if mappings == nil {
		return nil, errors.New("monitoring: nil mapping repo")
	}
	if bus == nil {
		return nil, errors.New("monitoring: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		registry: registry,
		mappings: mappings,
		fence:    fence,
		bus:      bus,
		logger:   logger,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// StartMonitoring opens (or resets) the session for a pair. The pair must
// hold an active directory mapping; restarting an active session is not an
// error, it resets the zone to FAR.
func (s *Service) StartMonitoring(ctx context.Context, recipientID, childID string) (monitoring.Session, error) {
	mappings, err := s.mappings.ListByChild(ctx, childID)
	if err != nil {
		return monitoring.Session{}, err
	}
	if !directory.HasActive(mappings, recipientID) {
		return monitoring.Session{}, ErrNoMapping
	}

	session, err := s.registry.Start(ctx, recipientID, childID)
	if err != nil {
		return monitoring.Session{}, err
	}
	s.publish(ctx, events.SessionStarted{
		SessionID:   session.ID,
		RecipientID: session.RecipientID,
		ChildID:     session.ChildID,
		OccurredAt:  session.StartedAt,
	})
	return session, nil
}

// StopMonitoring ends the session for a pair. Returns the ended session or
// nil when none was active (a no-op, never an error).
func (s *Service) StopMonitoring(ctx context.Context, recipientID, childID string) (*monitoring.Session, error) {
	session, err := s.registry.End(ctx, recipientID, childID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	s.publish(ctx, events.SessionEnded{
		SessionID:   session.ID,
		RecipientID: session.RecipientID,
		ChildID:     session.ChildID,
		Reason:      events.EndReasonManual,
		OccurredAt:  s.clock.Now().UTC(),
	})
	return session, nil
}

// ConfirmPickup handles the recipient's answer to the pickup prompt. A
// positive answer ends the session; a negative one keeps it alive and asks
// the router to repeat the prompt.
func (s *Service) ConfirmPickup(ctx context.Context, recipientID, childID string, pickedUp bool) error {
	session, err := s.registry.Get(ctx, recipientID, childID)
	if err != nil {
		return err
	}
	if session == nil {
		return monitoring.ErrSessionNotFound
	}

	if !pickedUp {
		s.publish(ctx, events.PickupDeclined{
			SessionID:   session.ID,
			RecipientID: session.RecipientID,
			ChildID:     session.ChildID,
			OccurredAt:  s.clock.Now().UTC(),
		})
		return nil
	}

	ended, err := s.registry.End(ctx, recipientID, childID)
	if err != nil {
		return err
	}
	if ended == nil {
		return monitoring.ErrSessionNotFound
	}
	s.publish(ctx, events.SessionEnded{
		SessionID:   ended.ID,
		RecipientID: ended.RecipientID,
		ChildID:     ended.ChildID,
		Reason:      events.EndReasonPickupConfirmed,
		OccurredAt:  s.clock.Now().UTC(),
	})
	return nil
}

// Status returns the active session for a pair, nil when none exists.
func (s *Service) Status(ctx context.Context, recipientID, childID string) (*monitoring.Session, error) {
	return s.registry.Get(ctx, recipientID, childID)
}

// HandleLocationSample classifies one GPS fix against the geofence. The new
// zone is persisted on every valid sample; a ZoneChanged event is published
// only when the sample crossed a boundary.
func (s *Service) HandleLocationSample(ctx context.Context, sample LocationSample) (SampleResult, error) {
	coord := monitoring.Coordinate{Lat: sample.Lat, Lng: sample.Lng}
	if err := coord.Validate(); err != nil {
		metrics.IncLocationSample(metrics.SampleResultInvalid)
		return SampleResult{}, err
	}

	zone, distance := s.fence.ClassifyCoordinate(coord)
	at := sample.ObservedAt
	if at.IsZero() {
		at = s.clock.Now()
	}
	at = at.UTC()

	session, previous, err := s.registry.SetZone(ctx, sample.RecipientID, sample.ChildID, zone, distance, at)
	if err != nil {
		if errors.Is(err, monitoring.ErrSessionNotFound) {
			metrics.IncLocationSample(metrics.SampleResultNoSession)
		}
		return SampleResult{}, err
	}
	metrics.IncLocationSample(metrics.SampleResultOK)

	result := SampleResult{
		SessionID:    session.ID,
		Zone:         zone,
		PreviousZone: previous,
		DistanceKM:   distance,
		Transitioned: previous != zone,
	}
	if !result.Transitioned {
		return result, nil
	}

	metrics.IncZoneTransition(string(previous), string(zone))
	s.publish(ctx, events.ZoneChanged{
		SessionID:   session.ID,
		RecipientID: session.RecipientID,
		ChildID:     session.ChildID,
		From:        previous,
		To:          zone,
		DistanceKM:  distance,
		Lat:         sample.Lat,
		Lng:         sample.Lng,
		OccurredAt:  at,
	})
	return result, nil
}

// publish delivers an event and logs instead of failing the calling
// operation: samples and lifecycle changes are already persisted by the
// time routing runs.
func (s *Service) publish(ctx context.Context, event any) {
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Printf("monitoring: publish %T error: %v", event, err)
	}
}
