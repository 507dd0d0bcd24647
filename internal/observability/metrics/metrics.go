package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "childmon_"

	statusSent   = "sent"
	statusFailed = "failed"
)

var (
	registerOnce sync.Once

	locationSamples *prometheus.CounterVec
	zoneTransitions *prometheus.CounterVec

	telemetryEvents *prometheus.CounterVec
	webhookRequests *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec

	alertsRouted  *prometheus.CounterVec
	alertsDropped *prometheus.CounterVec

	deliveries      *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		locationSamples = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "location_samples_total",
				Help: "Total location samples by result",
			},
			[]string{"result"},
		)
		zoneTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "zone_transitions_total",
				Help: "Total zone transitions by previous and new zone",
			},
			[]string{"from", "to"},
		)

		telemetryEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_events_total",
				Help: "Total device telemetry events by kind",
			},
			[]string{"kind"},
		)
		webhookRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "webhook_requests_total",
				Help: "Total device webhook requests by outcome",
			},
			[]string{"outcome"},
		)
		webhookLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "webhook_latency_seconds",
				Help:    "Device webhook latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		alertsRouted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_routed_total",
				Help: "Total routed alerts by kind",
			},
			[]string{"kind"},
		)
		alertsDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_dropped_total",
				Help: "Total dropped alerts by reason",
			},
			[]string{"reason"},
		)

		deliveries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "deliveries_total",
				Help: "Total notification deliveries by channel and status",
			},
			[]string{"channel", "status"},
		)
		deliveryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "delivery_latency_seconds",
				Help:    "Notification delivery latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		)

		prometheus.MustRegister(
			locationSamples,
			zoneTransitions,
			telemetryEvents,
			webhookRequests,
			webhookLatency,
			alertsRouted,
			alertsDropped,
			deliveries,
			deliveryLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncLocationSample increments the sample counter by result.
func IncLocationSample(result string) {
	if result == "" {
		result = "unknown"
	}
	if locationSamples != nil {
		locationSamples.WithLabelValues(result).Inc()
	}
}

// IncZoneTransition increments the transition counter.
func IncZoneTransition(from, to string) {
	if zoneTransitions != nil {
		zoneTransitions.WithLabelValues(from, to).Inc()
	}
}

// IncTelemetryEvent increments the telemetry counter by kind.
func IncTelemetryEvent(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if telemetryEvents != nil {
		telemetryEvents.WithLabelValues(kind).Inc()
	}
}

// ObserveWebhook records webhook request duration and outcome.
func ObserveWebhook(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = WebhookOutcomeAccepted
	}
	if webhookRequests != nil {
		webhookRequests.WithLabelValues(outcome).Inc()
	}
	if webhookLatency != nil {
		webhookLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// IncAlertRouted increments the routed alert counter by kind.
func IncAlertRouted(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if alertsRouted != nil {
		alertsRouted.WithLabelValues(kind).Inc()
	}
}

// IncAlertDropped increments the dropped alert counter by reason.
func IncAlertDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if alertsDropped != nil {
		alertsDropped.WithLabelValues(reason).Inc()
	}
}

// ObserveDelivery records one delivery attempt.
func ObserveDelivery(channel, status string, duration time.Duration) {
	if channel == "" {
		channel = "unknown"
	}
	if status == "" {
		status = statusSent
	}
	if deliveries != nil {
		deliveries.WithLabelValues(channel, status).Inc()
	}
	if deliveryLatency != nil {
		deliveryLatency.WithLabelValues(channel).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	SampleResultOK        = "ok"
	SampleResultInvalid   = "invalid"
	SampleResultNoSession = "no_session"

	WebhookOutcomeAccepted = "accepted"
	WebhookOutcomeRejected = "rejected"
	WebhookOutcomeVerified = "verified"

	DropReasonDuplicate     = "duplicate"
	DropReasonUnknownDevice = "unknown_device"
	DropReasonNoRecipients  = "no_recipients"
	DropReasonIgnoredKind   = "ignored_kind"
	DropReasonRegression    = "regression"

	ChannelChat   = "chat"
	ChannelDevice = "device"

	DeliveryStatusSent   = statusSent
	DeliveryStatusFailed = statusFailed
)
