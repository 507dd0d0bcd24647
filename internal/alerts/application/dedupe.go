package application

import (
	"sync"
	"time"
)

// dedupeSweepThreshold bounds the map before stale entries are swept.
const dedupeSweepThreshold = 1024

// Dedupe suppresses repeated alerts for the same key within a window.
// The window is measured from the last alert that actually fired, so a
// sustained condition re-alerts once per window.
type Dedupe struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	clock  Clock
}

// DedupeOption configures a Dedupe.
type DedupeOption func(*Dedupe)

// WithDedupeClock overrides the time source.
func WithDedupeClock(clock Clock) DedupeOption {
	return func(d *Dedupe) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDedupe constructs a dedupe cache. A non-positive window disables
// suppression.
func NewDedupe(window time.Duration, opts ...DedupeOption) *Dedupe {
	d := &Dedupe{
		window: window,
		seen:   make(map[string]time.Time),
		clock:  systemClock{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Window returns the suppression window.
func (d *Dedupe) Window() time.Duration {
	if d == nil {
		return 0
	}
	return d.window
}

// Seen reports whether key fired within the window and, if it did not,
// marks it as fired now. The check and the mark are a single atomic
// step so concurrent callers agree on one winner.
func (d *Dedupe) Seen(key string) bool {
	if d == nil || d.window <= 0 {
		return false
	}
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return true
	}
	if len(d.seen) >= dedupeSweepThreshold {
		d.sweep(now)
	}
	d.seen[key] = now
	return false
}

// sweep drops expired entries. Caller holds the lock.
func (d *Dedupe) sweep(now time.Time) {
	for key, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, key)
		}
	}
}
