package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fr33mang/helki-go/pkg/connection"
	"github.com/fr33mang/helki-go/pkg/engineio"
	"github.com/fr33mang/helki-go/pkg/transport"
)

// breakReason classifies why a polling session ended.
type breakReason uint8

const (
	breakShutdown breakReason = iota
	breakTransport
	breakClose
	breakIdle
	breakStale
)

func (r breakReason) String() string {
	switch r {
	case breakShutdown:
		return "shutdown"
	case breakTransport:
		return "transport error"
	case breakClose:
		return "close frame"
	case breakIdle:
		return "idle watchdog expired"
	case breakStale:
		return "staleness watchdog expired"
	default:
		return "unknown"
	}
}

// run is the listener loop. It owns the session lifecycle until ctx
// is cancelled. connected reports whether Start left a live session
// behind.
func (c *Coordinator) run(ctx context.Context, connected bool) {
	defer close(c.done)

	backoff := connection.NewBackoffWithConfig(c.cfg.Backoff)
	failures := 0
	fallbackFired := false

	for ctx.Err() == nil {
		if !connected {
			c.transition(connection.StateConnecting, "connecting")
			if err := c.connect(ctx); err != nil {
				if ctx.Err() != nil {
					break
				}
				failures++
				c.logServiceError(err.Error(), fmt.Sprintf("connect attempt %d", failures))

				// One REST refresh per crossing of the threshold, so a
				// long outage does not hammer the REST API either.
				if failures >= c.cfg.FailureThreshold && !fallbackFired {
					fallbackFired = true
					c.transition(connection.StateError, "failure threshold crossed")
					c.fallback.Refresh(ctx)
				}

				sleepCtx(ctx, backoff.Next())
				continue
			}
			c.transition(connection.StateJoined, "handshake complete")
		}

		failures = 0
		fallbackFired = false
		backoff.Reset()
		connected = false

		c.transition(connection.StatePolling, "session established")
		reason := c.pollLoop(ctx)
		c.session.Invalidate()

		if reason == breakShutdown {
			break
		}
		switch reason {
		case breakIdle, breakStale:
			c.transition(connection.StateStale, reason.String())
		default:
			c.transition(connection.StateError, reason.String())
		}

		// Mid-session breaks are not connect failures; reconnect after
		// a short cooldown rather than a backoff step.
		sleepCtx(ctx, c.cfg.Cooldown)
	}

	c.transition(connection.StateShuttingDown, "context cancelled")
}

// connect performs the connection sequence: handshake, namespace
// join, initial snapshot request. Any failure leaves the session
// invalidated.
func (c *Coordinator) connect(ctx context.Context) error {
	if _, err := c.session.Handshake(ctx); err != nil {
		return err
	}
	if err := c.session.JoinNamespace(ctx); err != nil {
		c.session.Invalidate()
		return err
	}
	if err := c.session.RequestSnapshot(ctx); err != nil {
		c.session.Invalidate()
		return err
	}
	return nil
}

// pollLoop drives a live session until it breaks and reports why.
func (c *Coordinator) pollLoop(ctx context.Context) breakReason {
	idle := connection.NewWatchdog(c.cfg.IdleWindow)
	stale := connection.NewWatchdog(c.cfg.StaleWindow)
	polls := 0

	for {
		if ctx.Err() != nil {
			return breakShutdown
		}

		packets, err := c.session.Poll(ctx, c.cfg.PollTimeout)
		switch {
		case err == nil:
		case errors.Is(err, transport.ErrPollTimeout):
			// Routine: the cloud held the poll open past our deadline.
			// Liveness is the watchdogs' call, below.
		case ctx.Err() != nil:
			return breakShutdown
		default:
			c.logServiceError(err.Error(), "poll")
			return breakTransport
		}

		for _, p := range packets {
			// Any frame at all proves the session is alive, no-ops
			// included.
			idle.Reset()

			closed := c.handlePacket(ctx, p, stale)
			if closed {
				return breakClose
			}
		}

		if idle.Expired() {
			return breakIdle
		}
		if stale.Expired() {
			return breakStale
		}

		polls++
		if c.cfg.KeepaliveEvery > 0 && polls%c.cfg.KeepaliveEvery == 0 {
			// Unsolicited snapshot re-request; repairs silently dropped
			// updates on very long-lived sessions.
			if err := c.session.RequestSnapshot(ctx); err != nil {
				c.logServiceError(err.Error(), "keepalive snapshot request")
			}
		}
	}
}

// handlePacket dispatches one packet and reports whether the server
// closed the session. stale is reset only when an event actually
// publishes a state update.
func (c *Coordinator) handlePacket(ctx context.Context, p engineio.Packet, stale *connection.Watchdog) (closed bool) {
	switch p.Type() {
	case engineio.TypePing:
		if err := c.session.Pong(ctx); err != nil {
			c.logServiceError(err.Error(), "pong")
		}
	case engineio.TypeClose:
		return true
	case engineio.TypeEvent:
		if c.router.HandleEvent(p) && stale != nil {
			stale.Reset()
		}
	}
	return false
}

// awaitInitialData polls a freshly connected session until the node
// list arrives or the bootstrap timeout passes. Reports whether the
// session is still usable.
func (c *Coordinator) awaitInitialData(ctx context.Context) bool {
	deadline := time.Now().Add(c.cfg.BootstrapTimeout)

	for ctx.Err() == nil && time.Now().Before(deadline) {
		if c.store.Len() > 0 {
			return true
		}

		timeout := min(c.cfg.PollTimeout, time.Until(deadline))
		packets, err := c.session.Poll(ctx, timeout)
		switch {
		case err == nil:
		case errors.Is(err, transport.ErrPollTimeout):
			continue
		default:
			c.session.Invalidate()
			return false
		}

		for _, p := range packets {
			if c.handlePacket(ctx, p, nil) {
				c.session.Invalidate()
				return false
			}
		}
	}
	return ctx.Err() == nil
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
