package telemetry

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrMismatchedDevice marks a webhook whose route device id contradicts the
// device id inside the payload.
var ErrMismatchedDevice = errors.New("telemetry: device id mismatch between route and payload")

// EventKind classifies a device condition report.
type EventKind string

const (
	// KindFall is a fall detected by the wearable.
	KindFall EventKind = "FALL"
	// KindOther is any condition the router does not act on.
	KindOther EventKind = "OTHER"
)

// Device condition values on the wire. The wearable firmware reports
// Indonesian condition strings; the arrival command reuses the same field.
const (
	ConditionFall          = "terjatuh"
	ConditionParentArrived = "posisi_ortu_dekat"
)

// KindFromCondition maps a raw condition string to an event kind. Only the
// fall condition is actionable; everything else is OTHER, not an error.
func KindFromCondition(condition string) EventKind {
	if strings.EqualFold(strings.TrimSpace(condition), ConditionFall) {
		return KindFall
	}
	return KindOther
}

// DeviceEvent is one normalized telemetry report from a wearable. Raw
// keeps the body as it arrived; duplicates carry identical raw payloads.
type DeviceEvent struct {
	DeviceID   string
	Kind       EventKind
	Condition  string
	ObservedAt time.Time
	Raw        json.RawMessage
}

// Validate checks event invariants.
func (e DeviceEvent) Validate() error {
	if e.DeviceID == "" {
		return errors.New("telemetry: empty device id")
	}
	if e.Condition == "" {
		return errors.New("telemetry: empty condition")
	}
	return nil
}
