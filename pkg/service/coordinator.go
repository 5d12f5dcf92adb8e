package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fr33mang/helki-go/pkg/connection"
	"github.com/fr33mang/helki-go/pkg/engineio"
	"github.com/fr33mang/helki-go/pkg/log"
	"github.com/fr33mang/helki-go/pkg/rest"
	"github.com/fr33mang/helki-go/pkg/router"
	"github.com/fr33mang/helki-go/pkg/state"
	"github.com/fr33mang/helki-go/pkg/transport"
)

// ErrNoData indicates the account has no devices to synchronize.
// This is the coordinator's only unrecoverable startup failure.
var ErrNoData = errors.New("no devices available")

// PushSession is the realtime transport surface the coordinator
// drives. Implemented by transport.Session.
type PushSession interface {
	Handshake(ctx context.Context) (*transport.Handle, error)
	JoinNamespace(ctx context.Context) error
	RequestSnapshot(ctx context.Context) error
	Pong(ctx context.Context) error
	Poll(ctx context.Context, timeout time.Duration) ([]engineio.Packet, error)
	Invalidate()
	Namespace() string
}

// Compile-time interface satisfaction check.
var _ PushSession = (*transport.Session)(nil)

// SessionFactory creates a push session bound to one device.
type SessionFactory func(deviceID string) PushSession

// Coordinator synchronizes the state store with the cloud. It owns
// the push session and a single listener goroutine; all exported
// methods are safe for concurrent use.
type Coordinator struct {
	cfg       Config
	directory rest.DeviceDirectory
	fetcher   rest.StatusFetcher
	sessions  SessionFactory

	store *state.Store

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	state    connection.State
	device   rest.Device
	session  PushSession
	router   *router.Router
	fallback *rest.Fallback
}

// NewCoordinator creates a coordinator. Call Start to begin
// synchronizing.
func NewCoordinator(cfg Config, directory rest.DeviceDirectory, fetcher rest.StatusFetcher, sessions SessionFactory) *Coordinator {
	return &Coordinator{
		cfg:       cfg.withDefaults(),
		directory: directory,
		fetcher:   fetcher,
		sessions:  sessions,
		store:     state.NewStore(),
		state:     connection.StateIdle,
	}
}

// Start binds the first device of the account, seeds the store and
// spawns the listener goroutine. Idempotent: a second call while
// running returns nil without side effects.
//
// ctx bounds only the startup sequence; the listener goroutine runs
// until Stop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	devices, err := c.directory.Devices(ctx)
	if err != nil {
		return fmt.Errorf("device lookup: %w", err)
	}
	if len(devices) == 0 {
		return ErrNoData
	}

	c.device = devices[0]
	c.session = c.sessions(c.device.ID)
	c.router = router.New(c.store, c.device.Context(), c.session.Namespace(), c.cfg.Logger)
	c.fallback = rest.NewFallback(c.fetcher, c.store, c.cfg.Logger)

	// Bootstrap: prefer the push channel's node list, fall back to
	// REST with the default zone addresses.
	connected := false
	c.transitionLocked(connection.StateConnecting, "bootstrap")
	if err := c.connect(ctx); err == nil {
		c.transitionLocked(connection.StateJoined, "bootstrap handshake complete")
		connected = c.awaitInitialData(ctx)
	}
	if c.store.Len() == 0 {
		c.fallback.Bootstrap(ctx, c.device)
	}
	if !connected {
		c.transitionLocked(connection.StateConnecting, "bootstrap push channel unavailable")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, connected)

	c.started = true
	return nil
}

// Stop tears the session down and waits for the listener goroutine to
// exit. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.started = false
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	c.transitionLocked(connection.StateIdle, "stopped")
	c.mu.Unlock()
}

// Device returns the bound device. Zero value before Start.
func (c *Coordinator) Device() rest.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// State returns the current lifecycle state.
func (c *Coordinator) State() connection.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentSnapshot returns the latest published snapshot. Never blocks
// on the listener.
func (c *Coordinator) CurrentSnapshot() state.Snapshot {
	return c.store.Snapshot()
}

// Subscribe registers a listener invoked after every snapshot
// publication. Callbacks run on the listener goroutine and must not
// block.
func (c *Coordinator) Subscribe(fn state.Listener) uint64 {
	return c.store.Subscribe(fn)
}

// Unsubscribe removes a previously registered listener.
func (c *Coordinator) Unsubscribe(id uint64) {
	c.store.Unsubscribe(id)
}

// RequestRefresh asks for fresh data. While the push channel is live
// this fires a snapshot re-request and returns immediately; the data
// arrives through the listener. While disconnected it falls back to a
// blocking REST refresh bounded by ctx.
func (c *Coordinator) RequestRefresh(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	st := c.state
	session := c.session
	fallback := c.fallback
	c.mu.Unlock()

	if !started {
		return errors.New("not started")
	}

	if st.Connected() {
		// Fire and forget; a failed re-request is repaired by the
		// supervisor's own keepalive and watchdogs.
		go func() {
			_ = session.RequestSnapshot(context.Background())
		}()
		return nil
	}

	fallback.Refresh(ctx)
	return ctx.Err()
}

// transition moves to a new state and logs the change.
func (c *Coordinator) transition(to connection.State, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionLocked(to, reason)
}

func (c *Coordinator) transitionLocked(to connection.State, reason string) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to
	c.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  c.device.ID,
		Direction: log.DirectionIn,
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

// logServiceError records an absorbed steady-state error.
func (c *Coordinator) logServiceError(msg, opCtx string) {
	c.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  c.device.ID,
		Direction: log.DirectionIn,
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: msg,
			Context: opCtx,
		},
	})
}
