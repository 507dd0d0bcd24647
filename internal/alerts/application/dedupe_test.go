package application

import (
	"sync"
	"testing"
	"time"
)

func TestDedupeSuppressesWithinWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 6, 30, 0, 0, time.UTC)}
	dedupe := NewDedupe(10*time.Second, WithDedupeClock(clock))

	if dedupe.Seen("FALL|dev-1") {
		t.Fatalf("expected first occurrence to pass")
	}
	clock.Add(3 * time.Second)
	if !dedupe.Seen("FALL|dev-1") {
		t.Fatalf("expected repeat within window to be suppressed")
	}
	if dedupe.Seen("FALL|dev-2") {
		t.Fatalf("expected different key to pass")
	}

	clock.Add(10 * time.Second)
	if dedupe.Seen("FALL|dev-1") {
		t.Fatalf("expected key to pass after window elapsed")
	}
}

func TestDedupeWindowMeasuredFromLastFire(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 6, 30, 0, 0, time.UTC)}
	dedupe := NewDedupe(10*time.Second, WithDedupeClock(clock))

	dedupe.Seen("key")
	for i := 0; i < 3; i++ {
		clock.Add(4 * time.Second)
		if i < 2 {
			if !dedupe.Seen("key") {
				t.Fatalf("expected suppression at +%ds", (i+1)*4)
			}
		} else {
			// 12s since the fire, suppressed repeats did not extend it.
			if dedupe.Seen("key") {
				t.Fatalf("expected pass once window elapsed from last fire")
			}
		}
	}
}

func TestDedupeDisabledWindow(t *testing.T) {
	dedupe := NewDedupe(0)
	for i := 0; i < 3; i++ {
		if dedupe.Seen("key") {
			t.Fatalf("expected zero window to never suppress")
		}
	}
}

func TestDedupeConcurrentSingleWinner(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 6, 30, 0, 0, time.UTC)}
	dedupe := NewDedupe(time.Minute, WithDedupeClock(clock))

	const goroutines = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	passed := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !dedupe.Seen("FALL|dev-1") {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if passed != 1 {
		t.Fatalf("expected exactly one winner, got %d", passed)
	}
}
