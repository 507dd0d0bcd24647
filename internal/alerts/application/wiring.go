package application

import (
	"context"
	"errors"
	"log"

	"child-monitoring/internal/eventing"
	monevents "child-monitoring/internal/monitoring/application/events"
	televents "child-monitoring/internal/telemetry/application/events"
)

// WireAlertRouting registers the router on the event bus. Routing
// outcomes are logged here and never returned to the bus: there is no
// retry path, so every consumed event is marked processed.
func WireAlertRouting(bus eventing.EventBus, router *Router, processed eventing.ProcessedStore, logger *log.Logger) {
	if bus == nil || router == nil {
		return
	}
	if logger == nil {
		logger = log.Default()
	}

	bus.SubscribeConsumer(eventing.EventTypeOf[monevents.ZoneChanged](), "alerts.zone", func(ctx context.Context, event any) error {
		evt, ok := event.(monevents.ZoneChanged)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		report, err := router.HandleZoneChanged(ctx, evt)
		logOutcome(logger, "zone", evt.RecipientID, report, err)
		return nil
	}, processed)

	bus.SubscribeConsumer(eventing.EventTypeOf[televents.TelemetryReceived](), "alerts.telemetry", func(ctx context.Context, event any) error {
		evt, ok := event.(televents.TelemetryReceived)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		report, err := router.HandleDeviceTelemetry(ctx, evt)
		logOutcome(logger, "telemetry", evt.DeviceID, report, err)
		return nil
	}, processed)

	bus.SubscribeConsumer(eventing.EventTypeOf[monevents.SessionStarted](), "alerts.session_started", func(ctx context.Context, event any) error {
		evt, ok := event.(monevents.SessionStarted)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		report, err := router.HandleSessionStarted(ctx, evt)
		logOutcome(logger, "session start", evt.RecipientID, report, err)
		return nil
	}, processed)

	bus.SubscribeConsumer(eventing.EventTypeOf[monevents.SessionEnded](), "alerts.session_ended", func(ctx context.Context, event any) error {
		evt, ok := event.(monevents.SessionEnded)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		report, err := router.HandleSessionEnded(ctx, evt)
		logOutcome(logger, "session end", evt.RecipientID, report, err)
		return nil
	}, processed)

	bus.SubscribeConsumer(eventing.EventTypeOf[monevents.PickupDeclined](), "alerts.pickup_declined", func(ctx context.Context, event any) error {
		evt, ok := event.(monevents.PickupDeclined)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		report, err := router.HandlePickupDeclined(ctx, evt)
		logOutcome(logger, "pickup declined", evt.RecipientID, report, err)
		return nil
	}, processed)
}

// logOutcome writes one line per routed event. Silent drops were
// already counted by the router.
func logOutcome(logger *log.Logger, source, subject string, report DeliveryReport, err error) {
	switch {
	case err == nil:
		if report.Total() > 0 {
			logger.Printf("alerts: %s %s delivered to %d recipients", source, subject, len(report.Succeeded))
		}
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrUnknownDevice), errors.Is(err, ErrNoRecipients):
		logger.Printf("alerts: %s %s dropped: %v", source, subject, err)
	case errors.Is(err, ErrPartialDelivery):
		logger.Printf("alerts: %s %s partial delivery, failed=%v", source, subject, report.Failed)
	default:
		logger.Printf("alerts: %s %s delivery error: %v", source, subject, err)
	}
}
