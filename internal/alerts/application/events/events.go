// Package events defines events published by the alert router.
package events

import "time"

// AlertRouted is raised after a routing decision produced at least one
// delivery attempt, including partially failed fan-outs.
type AlertRouted struct {
	Kind       string    `json:"kind"`
	ChildID    string    `json:"child_id"`
	DeviceID   string    `json:"device_id,omitempty"`
	Recipients []string  `json:"recipients"`
	Failed     []string  `json:"failed,omitempty"`
	DedupKey   string    `json:"dedup_key,omitempty"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
}
