package monitoring

import (
	"context"
	"time"
)

// SessionRegistry manages active pickup sessions. Implementations must make
// SetZone an atomic read-modify-write per session so concurrent samples
// racing one boundary yield exactly one observed transition.
type SessionRegistry interface {
	// Start creates a session in FAR, resetting any active one for the pair.
	Start(ctx context.Context, recipientID, childID string) (Session, error)
	// End removes the active session, returning it, or nil when none exists.
	End(ctx context.Context, recipientID, childID string) (*Session, error)
	// Get returns the active session, or nil when none exists.
	Get(ctx context.Context, recipientID, childID string) (*Session, error)
	// SetZone persists the new zone and sample bookkeeping and returns the
	// updated session together with the zone it replaced.
	SetZone(ctx context.Context, recipientID, childID string, zone Zone, distanceKM float64, at time.Time) (Session, Zone, error)
	// Snapshot copies all active sessions.
	Snapshot(ctx context.Context) ([]Session, error)
}
