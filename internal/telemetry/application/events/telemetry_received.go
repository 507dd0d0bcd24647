package events

import (
	"encoding/json"
	"time"

	telemetry "child-monitoring/internal/telemetry/domain"
)

// TelemetryReceived is raised after a device webhook is accepted.
type TelemetryReceived struct {
	EventID    string              `json:"event_id"`
	DeviceID   string              `json:"device_id"`
	Kind       telemetry.EventKind `json:"kind"`
	Condition  string              `json:"condition"`
	OccurredAt time.Time           `json:"occurred_at"`
	Raw        json.RawMessage     `json:"raw_payload,omitempty"`
}
