package directory

import (
	"errors"
	"time"
)

// Child is a student enrolled in monitoring.
type Child struct {
	ID        string
	Name      string
	DeviceID  string
	CreatedAt time.Time
}

// Validate checks child invariants.
func (c Child) Validate() error {
	if c.ID == "" {
		return errors.New("directory: empty child id")
	}
	if c.Name == "" {
		return errors.New("directory: empty child name")
	}
	return nil
}

// HasDevice reports whether a wearable is bound to the child.
func (c Child) HasDevice() bool {
	return c.DeviceID != ""
}
