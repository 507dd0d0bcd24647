package events

import (
	"time"

	monitoring "child-monitoring/internal/monitoring/domain"
)

// Session end reasons.
const (
	EndReasonManual          = "manual"
	EndReasonPickupConfirmed = "pickup_confirmed"
)

// SessionStarted is raised when pickup monitoring begins for a pair.
type SessionStarted struct {
	SessionID   string    `json:"session_id"`
	RecipientID string    `json:"recipient_id"`
	ChildID     string    `json:"child_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// SessionEnded is raised when a session is removed.
type SessionEnded struct {
	SessionID   string    `json:"session_id"`
	RecipientID string    `json:"recipient_id"`
	ChildID     string    `json:"child_id"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ZoneChanged is raised when a location sample moves a session across a
// geofence boundary. Exactly one event per observed crossing.
type ZoneChanged struct {
	SessionID   string          `json:"session_id"`
	RecipientID string          `json:"recipient_id"`
	ChildID     string          `json:"child_id"`
	From        monitoring.Zone `json:"from"`
	To          monitoring.Zone `json:"to"`
	DistanceKM  float64         `json:"distance_km"`
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// PickupDeclined is raised when the recipient answers the pickup prompt
// negatively; monitoring continues and the prompt is repeated.
type PickupDeclined struct {
	SessionID   string    `json:"session_id"`
	RecipientID string    `json:"recipient_id"`
	ChildID     string    `json:"child_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}
