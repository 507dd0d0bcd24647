package monitoring

import (
	"errors"
	"time"
)

// ErrSessionNotFound marks operations against a (recipient, child) pair
// with no active monitoring session.
var ErrSessionNotFound = errors.New("monitoring: session not found")

// Session is one active pickup run: a recipient driving toward school for
// one child. At most one session exists per (recipient, child) pair.
type Session struct {
	ID             string
	RecipientID    string
	ChildID        string
	Zone           Zone
	StartedAt      time.Time
	LastSampleAt   time.Time
	LastDistanceKM float64
}

// Key identifies a session by its (recipient, child) pair.
type Key struct {
	RecipientID string
	ChildID     string
}

// NewKey validates and builds a session key.
func NewKey(recipientID, childID string) (Key, error) {
	if recipientID == "" {
		return Key{}, errors.New("monitoring: empty recipient id")
	}
	if childID == "" {
		return Key{}, errors.New("monitoring: empty child id")
	}
	return Key{RecipientID: recipientID, ChildID: childID}, nil
}

// Key returns the session's identifying pair.
func (s Session) Key() Key {
	return Key{RecipientID: s.RecipientID, ChildID: s.ChildID}
}
