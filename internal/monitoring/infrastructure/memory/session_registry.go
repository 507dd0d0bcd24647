package memory

import (
	"context"
	"sync"
	"time"

	monitoring "child-monitoring/internal/monitoring/domain"

	"github.com/google/uuid"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SessionRegistry is the in-memory session store. Each entry carries its own
// mutex so zone updates for one session serialize while distinct sessions
// proceed in parallel. The registry map itself is guarded separately.
type SessionRegistry struct {
	mu      sync.RWMutex
	entries map[monitoring.Key]*sessionEntry

	clock Clock
	newID func() string
}

type sessionEntry struct {
	mu      sync.Mutex
	session monitoring.Session
}

// Option configures the registry.
type Option func(*SessionRegistry)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(r *SessionRegistry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry(opts ...Option) *SessionRegistry {
	registry := &SessionRegistry{
		entries: make(map[monitoring.Key]*sessionEntry),
		clock:   systemClock{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// Start creates a session in FAR. An already active pair is reset in place,
// not rejected: restarting monitoring is idempotent.
func (r *SessionRegistry) Start(ctx context.Context, recipientID, childID string) (monitoring.Session, error) {
	_ = ctx
	key, err := monitoring.NewKey(recipientID, childID)
	if err != nil {
		return monitoring.Session{}, err
	}

	now := r.clock.Now().UTC()
	fresh := monitoring.Session{
		ID:          r.newID(),
		RecipientID: recipientID,
		ChildID:     childID,
		Zone:        monitoring.ZoneFar,
		StartedAt:   now,
	}

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		r.entries[key] = &sessionEntry{session: fresh}
		r.mu.Unlock()
		return fresh, nil
	}
	r.mu.Unlock()

	entry.mu.Lock()
	entry.session = fresh
	entry.mu.Unlock()
	return fresh, nil
}

// End removes the active session and returns it, nil when none exists.
func (r *SessionRegistry) End(ctx context.Context, recipientID, childID string) (*monitoring.Session, error) {
	_ = ctx
	key, err := monitoring.NewKey(recipientID, childID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}

	entry.mu.Lock()
	ended := entry.session
	entry.mu.Unlock()
	return &ended, nil
}

// Get returns a copy of the active session, nil when none exists.
func (r *SessionRegistry) Get(ctx context.Context, recipientID, childID string) (*monitoring.Session, error) {
	_ = ctx
	key, err := monitoring.NewKey(recipientID, childID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	entry.mu.Lock()
	session := entry.session
	entry.mu.Unlock()
	return &session, nil
}

// SetZone persists the new zone plus sample bookkeeping under the session's
// own lock and reports the zone it replaced.
func (r *SessionRegistry) SetZone(ctx context.Context, recipientID, childID string, zone monitoring.Zone, distanceKM float64, at time.Time) (monitoring.Session, monitoring.Zone, error) {
	_ = ctx
	key, err := monitoring.NewKey(recipientID, childID)
	if err != nil {
		return monitoring.Session{}, "", err
	}
	if _, err := monitoring.ParseZone(string(zone)); err != nil {
		return monitoring.Session{}, "", err
	}

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return monitoring.Session{}, "", monitoring.ErrSessionNotFound
	}

	if at.IsZero() {
		at = r.clock.Now()
	}

	entry.mu.Lock()
	previous := entry.session.Zone
	entry.session.Zone = zone
	entry.session.LastDistanceKM = distanceKM
	entry.session.LastSampleAt = at.UTC()
	updated := entry.session
	entry.mu.Unlock()
	return updated, previous, nil
}

// Snapshot copies all active sessions, unordered.
func (r *SessionRegistry) Snapshot(ctx context.Context) ([]monitoring.Session, error) {
	_ = ctx
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	sessions := make([]monitoring.Session, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		sessions = append(sessions, entry.session)
		entry.mu.Unlock()
	}
	return sessions, nil
}
