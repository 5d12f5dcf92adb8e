package connection

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		// Expected base sequence: 5s, 10s, 20s, 40s, 60s, 60s...
		expected := append(BackoffSequence(), 60*time.Second)

		for i, exp := range expected {
			base := b.Current()
			_ = b.Next()

			if base != exp {
				t.Errorf("attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff()

		samples := make([]time.Duration, 10)
		for i := range samples {
			samples[i] = b.Peek()
		}

		// All samples in [5s, 6.25s] with the default jitter factor.
		for i, s := range samples {
			if s < 5*time.Second || s > time.Duration(float64(5*time.Second)*1.25)+time.Millisecond {
				t.Errorf("sample %d: %v out of range [5s, 6.25s]", i, s)
			}
		}

		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("all jittered samples identical")
		}
	})

	t.Run("ResetOnSuccess", func(t *testing.T) {
		b := NewBackoff()

		for i := 0; i < 5; i++ {
			b.Next()
		}
		if b.Current() <= InitialBackoff {
			t.Error("backoff should have increased")
		}

		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("Attempts", func(t *testing.T) {
		b := NewBackoff()
		for i := 1; i <= 5; i++ {
			b.Next()
			if b.Attempts() != i {
				t.Errorf("Attempts() = %d, want %d", b.Attempts(), i)
			}
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    time.Second,
			Max:        4 * time.Second,
			Multiplier: 2,
		})

		want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
		for i, exp := range want {
			if got := b.Current(); got != exp {
				t.Errorf("attempt %d: Current() = %v, want %v", i, got, exp)
			}
			if got := b.Next(); got != exp {
				t.Errorf("attempt %d: Next() = %v, want %v (no jitter configured)", i, got, exp)
			}
		}
	})
}

func TestState(t *testing.T) {
	names := map[State]string{
		StateIdle:         "IDLE",
		StateConnecting:   "CONNECTING",
		StateJoined:       "JOINED",
		StatePolling:      "POLLING",
		StateStale:        "STALE",
		StateError:        "ERROR",
		StateShuttingDown: "SHUTTING_DOWN",
		State(99):         "UNKNOWN",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}

	for s, want := range map[State]bool{
		StateIdle:         false,
		StateConnecting:   false,
		StateJoined:       true,
		StatePolling:      true,
		StateStale:        false,
		StateShuttingDown: false,
	} {
		if s.Connected() != want {
			t.Errorf("%v.Connected() = %v, want %v", s, s.Connected(), want)
		}
	}
}

// fakeClock is a synthetic clock for watchdog tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestWatchdog(t *testing.T) {
	t.Run("ExpiresAfterWindow", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1000, 0)}
		w := NewWatchdogWithClock(40*time.Second, clock.now)

		if w.Expired() {
			t.Error("fresh watchdog must not be expired")
		}

		clock.advance(40 * time.Second)
		if w.Expired() {
			t.Error("watchdog must not expire exactly at the window")
		}

		clock.advance(time.Second)
		if !w.Expired() {
			t.Error("watchdog must expire past the window")
		}
	})

	t.Run("ResetRearms", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1000, 0)}
		w := NewWatchdogWithClock(40*time.Second, clock.now)

		clock.advance(39 * time.Second)
		w.Reset()
		clock.advance(39 * time.Second)

		if w.Expired() {
			t.Error("reset must re-arm the window")
		}
		if w.Elapsed() != 39*time.Second {
			t.Errorf("Elapsed() = %v, want 39s", w.Elapsed())
		}
	})

	t.Run("IndependentWindows", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1000, 0)}
		idle := NewWatchdogWithClock(DefaultIdleWindow, clock.now)
		stale := NewWatchdogWithClock(DefaultStaleWindow, clock.now)

		// A no-op frame keeps the session alive but is not a
		// substantive update: only the idle watchdog is reset.
		clock.advance(41 * time.Second)
		idle.Reset()

		if idle.Expired() {
			t.Error("idle watchdog was just reset")
		}
		if stale.Expired() {
			t.Error("staleness window has not elapsed yet")
		}

		for i := 0; i < 8; i++ {
			clock.advance(39 * time.Second)
			idle.Reset()
		}

		if idle.Expired() {
			t.Error("idle watchdog kept alive by frames")
		}
		if !stale.Expired() {
			t.Error("staleness watchdog must expire without substantive updates")
		}
	})
}
