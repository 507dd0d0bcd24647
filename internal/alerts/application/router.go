package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	alertevents "child-monitoring/internal/alerts/application/events"
	"child-monitoring/internal/alerts/notify"
	"child-monitoring/internal/audit"
	directory "child-monitoring/internal/directory/domain"
	monevents "child-monitoring/internal/monitoring/application/events"
	monitoring "child-monitoring/internal/monitoring/domain"
	"child-monitoring/internal/observability/metrics"
	televents "child-monitoring/internal/telemetry/application/events"
	telemetry "child-monitoring/internal/telemetry/domain"

	"github.com/google/uuid"
)

var (
	// ErrDuplicate marks an event already alerted within the dedupe window.
	ErrDuplicate = errors.New("alerts: duplicate event")
	// ErrUnknownDevice marks telemetry from a device with no directory entry.
	ErrUnknownDevice = errors.New("alerts: unknown device")
	// ErrNoRecipients marks a fall with no active teacher to notify.
	ErrNoRecipients = errors.New("alerts: no active recipients")
	// ErrPartialDelivery marks a fan-out where some sends failed.
	ErrPartialDelivery = errors.New("alerts: partial delivery failure")
)

const (
	defaultSendTimeout = 5 * time.Second

	// fallbackChildName keeps messages readable when the directory has
	// no name for the child.
	fallbackChildName = "anak Anda"

	timeLayout = "02/01/2006 15:04:05"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// Messenger delivers a chat message to one recipient.
type Messenger interface {
	Send(ctx context.Context, recipientID, text string) error
}

// DeviceSignaler pushes the parent-arrived signal to a child's wearable.
type DeviceSignaler interface {
	SignalArrival(ctx context.Context, deviceID string) error
}

// EventPublisher publishes alert events on the bus.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Router turns monitoring and telemetry events into recipient-addressed
// notifications. Zone alerts go to the session's originating recipient,
// fall alerts fan out to the child's active teachers and never to
// parents. Delivery is single-shot: failures are recorded, not retried.
type Router struct {
	children  directory.ChildRepository
	mappings  directory.MappingRepository
	messenger Messenger
	templates *notify.TemplateSet
	dedupe    *Dedupe

	signaler    DeviceSignaler
	deliveries  audit.Logger
	bus         EventPublisher
	logger      *log.Logger
	clock       Clock
	sendTimeout time.Duration
}

// RouterOption configures optional router collaborators.
type RouterOption func(*Router)

// WithDeviceSignaler enables the wearable arrival signal leg.
func WithDeviceSignaler(signaler DeviceSignaler) RouterOption {
	return func(r *Router) { r.signaler = signaler }
}

// WithDeliveryLog records every delivery attempt.
func WithDeliveryLog(logger audit.Logger) RouterOption {
	return func(r *Router) { r.deliveries = logger }
}

// WithPublisher emits AlertRouted events after each fan-out.
func WithPublisher(bus EventPublisher) RouterOption {
	return func(r *Router) { r.bus = bus }
}

// WithClock overrides the time source.
func WithClock(clock Clock) RouterOption {
	return func(r *Router) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithSendTimeout bounds each delivery attempt.
func WithSendTimeout(timeout time.Duration) RouterOption {
	return func(r *Router) {
		if timeout > 0 {
			r.sendTimeout = timeout
		}
	}
}

// NewRouter constructs an alert router.
func NewRouter(
	children directory.ChildRepository,
	mappings directory.MappingRepository,
	messenger Messenger,
	templates *notify.TemplateSet,
	dedupe *Dedupe,
	logger *log.Logger,
	opts ...RouterOption,
) (*Router, error) {
	if children == nil {
		return nil, errors.New("alerts: nil child repository")
	}
	if mappings == nil {
		return nil, errors.New("alerts: nil mapping repository")
	}
	if messenger == nil {
		return nil, errors.New("alerts: nil messenger")
	}
	if templates == nil {
		return nil, errors.New("alerts: nil template set")
	}
	if dedupe == nil {
		return nil, errors.New("alerts: nil dedupe")
	}
	if logger == nil {
		logger = log.Default()
	}

	router := &Router{
		children:    children,
		mappings:    mappings,
		messenger:   messenger,
		templates:   templates,
		dedupe:      dedupe,
		logger:      logger,
		clock:       systemClock{},
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(router)
		}
	}
	return router, nil
}

// HandleZoneChanged routes proximity transitions to the recipient who
// owns the session. Transitions toward FAR are silent; re-approaching
// crosses the boundary again and alerts again.
func (r *Router) HandleZoneChanged(ctx context.Context, evt monevents.ZoneChanged) (DeliveryReport, error) {
	if evt.To.Rank() <= evt.From.Rank() {
		metrics.IncAlertDropped(metrics.DropReasonRegression)
		r.logger.Printf("alerts: zone regression %s->%s recipient=%s suppressed", evt.From, evt.To, evt.RecipientID)
		return DeliveryReport{}, nil
	}

	switch evt.To {
	case monitoring.ZoneNear:
		return r.routeNearSchool(ctx, evt)
	case monitoring.ZoneArrived:
		return r.routeArrived(ctx, evt)
	default:
		return DeliveryReport{}, nil
	}
}

func (r *Router) routeNearSchool(ctx context.Context, evt monevents.ZoneChanged) (DeliveryReport, error) {
	child := r.lookupChild(ctx, evt.ChildID)
	body, err := r.templates.Render(string(KindNearSchool), notify.TemplateData{
		ChildName:   childName(child),
		ChildID:     evt.ChildID,
		RecipientID: evt.RecipientID,
		DistanceKM:  formatKM(evt.DistanceKM),
	})
	if err != nil {
		return DeliveryReport{}, err
	}
	dedupKey := ZoneDedupKey(evt.SessionID, string(evt.From), string(evt.To), evt.OccurredAt)
	return r.fanOut(ctx, KindNearSchool, evt.ChildID, "", []string{evt.RecipientID}, body, dedupKey)
}

// routeArrived fires both arrival legs. The chat prompt and the device
// signal are independent: one failing never blocks the other.
func (r *Router) routeArrived(ctx context.Context, evt monevents.ZoneChanged) (DeliveryReport, error) {
	child := r.lookupChild(ctx, evt.ChildID)
	body, err := r.templates.Render(string(KindPickupPrompt), notify.TemplateData{
		ChildName:   childName(child),
		ChildID:     evt.ChildID,
		RecipientID: evt.RecipientID,
		DistanceKM:  formatKM(evt.DistanceKM),
	})
	if err != nil {
		return DeliveryReport{}, err
	}
	dedupKey := ZoneDedupKey(evt.SessionID, string(evt.From), string(evt.To), evt.OccurredAt)

	report, chatErr := r.fanOut(ctx, KindPickupPrompt, evt.ChildID, "", []string{evt.RecipientID}, body, dedupKey)

	var signalErr error
	switch {
	case r.signaler == nil:
		r.logger.Printf("alerts: arrival signal skipped, no signaler configured")
	case child == nil || !child.HasDevice():
		r.logger.Printf("alerts: arrival signal skipped, child %s has no device", evt.ChildID)
	default:
		signalErr = r.signalDevice(ctx, NotificationRequest{
			ID:          uuid.NewString(),
			Kind:        KindPickupPrompt,
			RecipientID: child.DeviceID,
			ChildID:     evt.ChildID,
			DedupKey:    dedupKey,
			CreatedAt:   r.clock.Now().UTC(),
		})
	}

	return report, errors.Join(chatErr, signalErr)
}

// HandleDeviceTelemetry routes wearable telemetry. Only falls alert;
// anything else is counted and ignored.
func (r *Router) HandleDeviceTelemetry(ctx context.Context, evt televents.TelemetryReceived) (DeliveryReport, error) {
	if evt.Kind != telemetry.KindFall {
		metrics.IncAlertDropped(metrics.DropReasonIgnoredKind)
		return DeliveryReport{}, nil
	}
	if r.dedupe.Seen(string(evt.Kind) + "|" + evt.DeviceID) {
		metrics.IncAlertDropped(metrics.DropReasonDuplicate)
		return DeliveryReport{}, fmt.Errorf("%w: fall from device %s", ErrDuplicate, evt.DeviceID)
	}

	child, err := r.children.GetByDevice(ctx, evt.DeviceID)
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("lookup device %s: %w", evt.DeviceID, err)
	}
	if child == nil {
		metrics.IncAlertDropped(metrics.DropReasonUnknownDevice)
		return DeliveryReport{}, fmt.Errorf("%w: %s", ErrUnknownDevice, evt.DeviceID)
	}

	mappings, err := r.mappings.ListByChild(ctx, child.ID)
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("list mappings for child %s: %w", child.ID, err)
	}
	teachers := directory.ActiveTeachers(mappings)
	if len(teachers) == 0 {
		metrics.IncAlertDropped(metrics.DropReasonNoRecipients)
		return DeliveryReport{}, fmt.Errorf("%w: child %s has no active teachers", ErrNoRecipients, child.ID)
	}

	body, err := r.templates.Render(string(KindFall), notify.TemplateData{
		ChildName: childName(child),
		ChildID:   child.ID,
		DeviceID:  evt.DeviceID,
		Condition: evt.Condition,
		Time:      evt.OccurredAt.Format(timeLayout),
	})
	if err != nil {
		return DeliveryReport{}, err
	}

	recipients := make([]string, 0, len(teachers))
	for _, mapping := range teachers {
		recipients = append(recipients, mapping.RecipientID)
	}
	dedupKey := FallDedupKey(evt.DeviceID, evt.OccurredAt, r.dedupe.Window())
	return r.fanOut(ctx, KindFall, child.ID, evt.DeviceID, recipients, body, dedupKey)
}

// HandleSessionStarted greets the recipient who started monitoring.
func (r *Router) HandleSessionStarted(ctx context.Context, evt monevents.SessionStarted) (DeliveryReport, error) {
	child := r.lookupChild(ctx, evt.ChildID)
	body, err := r.templates.Render(string(KindMonitoringStarted), notify.TemplateData{
		ChildName:   childName(child),
		ChildID:     evt.ChildID,
		RecipientID: evt.RecipientID,
	})
	if err != nil {
		return DeliveryReport{}, err
	}
	dedupKey := SessionDedupKey("started", evt.SessionID)
	return r.fanOut(ctx, KindMonitoringStarted, evt.ChildID, "", []string{evt.RecipientID}, body, dedupKey)
}

// HandleSessionEnded tells the recipient monitoring stopped.
func (r *Router) HandleSessionEnded(ctx context.Context, evt monevents.SessionEnded) (DeliveryReport, error) {
	child := r.lookupChild(ctx, evt.ChildID)
	body, err := r.templates.Render(string(KindMonitoringStopped), notify.TemplateData{
		ChildName:   childName(child),
		ChildID:     evt.ChildID,
		RecipientID: evt.RecipientID,
	})
	if err != nil {
		return DeliveryReport{}, err
	}
	dedupKey := SessionDedupKey("ended", evt.SessionID)
	return r.fanOut(ctx, KindMonitoringStopped, evt.ChildID, "", []string{evt.RecipientID}, body, dedupKey)
}

// HandlePickupDeclined re-sends the pickup prompt after a "Tidak".
func (r *Router) HandlePickupDeclined(ctx context.Context, evt monevents.PickupDeclined) (DeliveryReport, error) {
	child := r.lookupChild(ctx, evt.ChildID)
	body, err := r.templates.Render(string(KindPickupPrompt), notify.TemplateData{
		ChildName:   childName(child),
		ChildID:     evt.ChildID,
		RecipientID: evt.RecipientID,
	})
	if err != nil {
		return DeliveryReport{}, err
	}
	dedupKey := SessionDedupKey("declined", evt.SessionID) + "-" + evt.OccurredAt.UTC().Format(time.RFC3339)
	return r.fanOut(ctx, KindPickupPrompt, evt.ChildID, "", []string{evt.RecipientID}, body, dedupKey)
}

// fanOut sends one chat message per recipient, records each attempt,
// then publishes a routing summary. A failed send never stops the
// remaining recipients.
func (r *Router) fanOut(ctx context.Context, kind Kind, childID, deviceID string, recipients []string, body, dedupKey string) (DeliveryReport, error) {
	var report DeliveryReport
	var firstErr error
	now := r.clock.Now().UTC()

	for _, recipientID := range recipients {
		req := NotificationRequest{
			ID:          uuid.NewString(),
			Kind:        kind,
			RecipientID: recipientID,
			ChildID:     childID,
			Body:        body,
			DedupKey:    dedupKey,
			CreatedAt:   now,
		}
		if err := r.sendChat(ctx, req); err != nil {
			report.Failed = append(report.Failed, recipientID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		report.Succeeded = append(report.Succeeded, recipientID)
	}

	metrics.IncAlertRouted(string(kind))
	r.publishRouted(ctx, kind, childID, deviceID, report, body, dedupKey, now)

	switch {
	case firstErr == nil:
		return report, nil
	case len(report.Succeeded) == 0:
		return report, firstErr
	default:
		return report, fmt.Errorf("%w: %d of %d sends failed", ErrPartialDelivery, len(report.Failed), report.Total())
	}
}

func (r *Router) sendChat(ctx context.Context, req NotificationRequest) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	start := r.clock.Now()
	err := r.messenger.Send(sendCtx, req.RecipientID, req.Body)
	elapsed := r.clock.Now().Sub(start)

	if err != nil {
		metrics.ObserveDelivery(metrics.ChannelChat, metrics.DeliveryStatusFailed, elapsed)
		r.recordDelivery(ctx, req, metrics.ChannelChat, audit.StatusFailed, err)
		r.logger.Printf("alerts: send %s to %s failed: %v", req.Kind, req.RecipientID, err)
		return fmt.Errorf("send %s to %s: %w", req.Kind, req.RecipientID, err)
	}
	metrics.ObserveDelivery(metrics.ChannelChat, metrics.DeliveryStatusSent, elapsed)
	r.recordDelivery(ctx, req, metrics.ChannelChat, audit.StatusSent, nil)
	return nil
}

// signalDevice pushes the parent-arrived condition to the wearable.
// req.RecipientID holds the device id.
func (r *Router) signalDevice(ctx context.Context, req NotificationRequest) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	start := r.clock.Now()
	err := r.signaler.SignalArrival(sendCtx, req.RecipientID)
	elapsed := r.clock.Now().Sub(start)

	if err != nil {
		metrics.ObserveDelivery(metrics.ChannelDevice, metrics.DeliveryStatusFailed, elapsed)
		r.recordDelivery(ctx, req, metrics.ChannelDevice, audit.StatusFailed, err)
		r.logger.Printf("alerts: arrival signal to device %s failed: %v", req.RecipientID, err)
		return fmt.Errorf("signal device %s: %w", req.RecipientID, err)
	}
	metrics.ObserveDelivery(metrics.ChannelDevice, metrics.DeliveryStatusSent, elapsed)
	r.recordDelivery(ctx, req, metrics.ChannelDevice, audit.StatusSent, nil)
	return nil
}

func (r *Router) recordDelivery(ctx context.Context, req NotificationRequest, channel, status string, sendErr error) {
	if r.deliveries == nil {
		return
	}
	entry := audit.Entry{
		NotificationID: req.ID,
		Kind:           string(req.Kind),
		RecipientID:    req.RecipientID,
		ChildID:        req.ChildID,
		Channel:        channel,
		Status:         status,
		DedupKey:       req.DedupKey,
		CreatedAt:      r.clock.Now().UTC(),
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if err := r.deliveries.Record(ctx, entry); err != nil {
		r.logger.Printf("alerts: delivery log error: %v", err)
	}
}

func (r *Router) publishRouted(ctx context.Context, kind Kind, childID, deviceID string, report DeliveryReport, body, dedupKey string, at time.Time) {
	if r.bus == nil {
		return
	}
	evt := alertevents.AlertRouted{
		Kind:       string(kind),
		ChildID:    childID,
		DeviceID:   deviceID,
		Recipients: report.Succeeded,
		Failed:     report.Failed,
		DedupKey:   dedupKey,
		Body:       body,
		OccurredAt: at,
	}
	if err := r.bus.Publish(ctx, evt); err != nil {
		r.logger.Printf("alerts: publish %T error: %v", evt, err)
	}
}

func (r *Router) lookupChild(ctx context.Context, childID string) *directory.Child {
	child, err := r.children.Get(ctx, childID)
	if err != nil {
		r.logger.Printf("alerts: child lookup %s: %v", childID, err)
		return nil
	}
	return child
}

func childName(child *directory.Child) string {
	if child == nil || child.Name == "" {
		return fallbackChildName
	}
	return child.Name
}

func formatKM(km float64) string {
	return strconv.FormatFloat(km, 'f', 2, 64)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
