package application

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Kind identifies the class of an outbound alert.
type Kind string

const (
	KindNearSchool        Kind = "near_school"
	KindPickupPrompt      Kind = "pickup_prompt"
	KindFall              Kind = "fall"
	KindMonitoringStarted Kind = "monitoring_started"
	KindMonitoringStopped Kind = "monitoring_stopped"
)

// NotificationRequest is one rendered alert addressed to one recipient.
type NotificationRequest struct {
	ID          string
	Kind        Kind
	RecipientID string
	ChildID     string
	Body        string
	DedupKey    string
	CreatedAt   time.Time
}

// DeliveryReport summarises a fan-out: which recipients the alert
// reached and which sends failed.
type DeliveryReport struct {
	Succeeded []string
	Failed    []string
}

// Total returns the number of attempted deliveries.
func (r DeliveryReport) Total() int { return len(r.Succeeded) + len(r.Failed) }

// FallDedupKey derives a stable key for a fall alert. Events inside the
// same window share a key so downstream consumers can correlate the
// suppressed repeats with the alert that fired.
func FallDedupKey(deviceID string, at time.Time, window time.Duration) string {
	bucket := at.UTC()
	if window > 0 {
		bucket = bucket.Truncate(window)
	}
	return hashKey("fall|" + deviceID + "|" + bucket.Format(time.RFC3339))
}

// ZoneDedupKey derives a stable key for a zone transition alert.
func ZoneDedupKey(sessionID, from, to string, at time.Time) string {
	return hashKey("zone|" + sessionID + "|" + from + "|" + to + "|" + at.UTC().Format(time.RFC3339))
}

// SessionDedupKey derives a stable key for session lifecycle alerts.
func SessionDedupKey(event, sessionID string) string {
	return hashKey("session|" + event + "|" + sessionID)
}

func hashKey(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
