package connection

import (
	"sync"
	"time"
)

// Liveness windows tuned against the vendor service.
const (
	// DefaultIdleWindow is how long the session may go without any
	// frame at all (no-ops included) before a reconnect is forced.
	DefaultIdleWindow = 40 * time.Second

	// DefaultStaleWindow is how long the session may go without a
	// substantive update before a reconnect is forced, even when
	// polling itself appears healthy.
	DefaultStaleWindow = 5 * time.Minute
)

// Watchdog tracks elapsed time since the last qualifying activity and
// reports expiry of a fixed window. It does not fire callbacks; the
// supervisor checks it on every poll cycle.
//
// The zero value is not usable; use NewWatchdog.
type Watchdog struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	now    func() time.Time
}

// NewWatchdog creates a watchdog with the given window, armed from now.
func NewWatchdog(window time.Duration) *Watchdog {
	return NewWatchdogWithClock(window, time.Now)
}

// NewWatchdogWithClock creates a watchdog using a custom clock.
// Tests use this to drive expiry deterministically.
func NewWatchdogWithClock(window time.Duration, now func() time.Time) *Watchdog {
	return &Watchdog{
		window: window,
		last:   now(),
		now:    now,
	}
}

// Reset records qualifying activity, re-arming the window.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = w.now()
}

// Expired reports whether the window elapsed without a Reset.
func (w *Watchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now().Sub(w.last) > w.window
}

// Elapsed returns the time since the last qualifying activity.
func (w *Watchdog) Elapsed() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now().Sub(w.last)
}

// Window returns the configured window.
func (w *Watchdog) Window() time.Duration {
	return w.window
}
