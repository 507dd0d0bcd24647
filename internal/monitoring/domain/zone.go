package monitoring

import "fmt"

// Zone is the proximity classification of a recipient relative to the
// school geofence.
type Zone string

const (
	// ZoneFar is outside the notification radius.
	ZoneFar Zone = "FAR"
	// ZoneNear is inside the notification radius but outside arrival range.
	ZoneNear Zone = "NEAR"
	// ZoneArrived is within arrival range of the school gate.
	ZoneArrived Zone = "ARRIVED"
)

// ParseZone validates a raw zone string.
func ParseZone(raw string) (Zone, error) {
	switch Zone(raw) {
	case ZoneFar, ZoneNear, ZoneArrived:
		return Zone(raw), nil
	default:
		return "", fmt.Errorf("monitoring: unknown zone %q", raw)
	}
}

// Rank orders zones by proximity, FAR lowest. Used to tell upward
// transitions (approach) from regressions (GPS drift away).
func (z Zone) Rank() int {
	switch z {
	case ZoneNear:
		return 1
	case ZoneArrived:
		return 2
	default:
		return 0
	}
}
