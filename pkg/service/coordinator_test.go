package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fr33mang/helki-go/pkg/connection"
	"github.com/fr33mang/helki-go/pkg/engineio"
	"github.com/fr33mang/helki-go/pkg/rest"
	"github.com/fr33mang/helki-go/pkg/state"
	"github.com/fr33mang/helki-go/pkg/transport"
)

const testNamespace = "/api/v2/socket_io"

// fakeSession is a scripted push session. pollFn receives the poll
// number (1-based) and decides what that poll returns.
type fakeSession struct {
	mu           sync.Mutex
	handshakeErr error
	handshakes   int
	joins        int
	snapshotReqs int
	pongs        int
	invalidates  int
	polls        int
	pollFn       func(n int) ([]engineio.Packet, error)
}

func (f *fakeSession) Handshake(context.Context) (*transport.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handshakes++
	if f.handshakeErr != nil {
		return nil, f.handshakeErr
	}
	return &transport.Handle{SID: "sid1"}, nil
}

func (f *fakeSession) JoinNamespace(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins++
	return nil
}

func (f *fakeSession) RequestSnapshot(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotReqs++
	return nil
}

func (f *fakeSession) Pong(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pongs++
	return nil
}

func (f *fakeSession) Poll(ctx context.Context, _ time.Duration) ([]engineio.Packet, error) {
	f.mu.Lock()
	f.polls++
	n := f.polls
	fn := f.pollFn
	f.mu.Unlock()

	// Pace the listener so tests do not busy-spin.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(2 * time.Millisecond):
	}

	if fn == nil {
		return nil, transport.ErrPollTimeout
	}
	return fn(n)
}

func (f *fakeSession) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidates++
}

func (f *fakeSession) Namespace() string { return testNamespace }

func (f *fakeSession) counts() (handshakes, snapshotReqs, pongs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handshakes, f.snapshotReqs, f.pongs
}

// fakeDirectory serves a fixed device list.
type fakeDirectory struct {
	devices []rest.Device
	err     error
}

func (f *fakeDirectory) Devices(context.Context) ([]rest.Device, error) {
	return f.devices, f.err
}

// countingFetcher serves a fixed status and counts calls.
type countingFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *countingFetcher) ZoneStatus(context.Context, string, int) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"mode": "auto"}, nil
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func devDataPacket() engineio.Packet {
	return engineio.Packet{Raw: fmt.Sprintf(
		`42%s,["dev_data",{"nodes":[{"addr":2,"name":"Living","status":{"mode":"auto"}}]}]`,
		testNamespace,
	)}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.PollTimeout = 50 * time.Millisecond
	cfg.BootstrapTimeout = 100 * time.Millisecond
	cfg.Cooldown = time.Millisecond
	cfg.Backoff = connection.BackoffConfig{
		Initial:    time.Millisecond,
		Max:        2 * time.Millisecond,
		Multiplier: 2,
	}
	return cfg
}

func newTestCoordinator(cfg Config, session *fakeSession, dir *fakeDirectory, fetcher *countingFetcher) *Coordinator {
	return NewCoordinator(cfg, dir, fetcher, func(string) PushSession { return session })
}

func oneDevice() *fakeDirectory {
	return &fakeDirectory{devices: []rest.Device{{
		ID:    "D1",
		Name:  "House",
		Zones: []int{2},
	}}}
}

func TestStartNoDevices(t *testing.T) {
	c := newTestCoordinator(fastConfig(), &fakeSession{}, &fakeDirectory{}, &countingFetcher{})
	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, connection.StateIdle, c.State())
}

func TestStartDirectoryError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("unauthorized")}
	c := newTestCoordinator(fastConfig(), &fakeSession{}, dir, &countingFetcher{})
	err := c.Start(context.Background())
	assert.ErrorIs(t, err, dir.err)
}

func TestStartPushBootstrap(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		if n == 1 {
			return []engineio.Packet{devDataPacket()}, nil
		}
		return nil, transport.ErrPollTimeout
	}
	fetcher := &countingFetcher{}
	c := newTestCoordinator(fastConfig(), session, oneDevice(), fetcher)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	snap := c.CurrentSnapshot()
	require.Len(t, snap, 1)
	zone := snap["D1_zone2"]
	assert.Equal(t, "Living", zone.Name)
	assert.Equal(t, "D1", zone.Device.DeviceID)

	// Node list came over the push channel, not REST.
	assert.Equal(t, 0, fetcher.count())

	assert.Eventually(t, func() bool {
		return c.State() == connection.StatePolling
	}, time.Second, 5*time.Millisecond)
}

func TestStartRESTBootstrapFallback(t *testing.T) {
	session := &fakeSession{handshakeErr: errors.New("503")}
	fetcher := &countingFetcher{}
	c := newTestCoordinator(fastConfig(), session, oneDevice(), fetcher)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	snap := c.CurrentSnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "auto", snap["D1_zone2"].Status["mode"])
	assert.Equal(t, 1, fetcher.count())
}

func TestStartIdempotent(t *testing.T) {
	session := &fakeSession{}
	c := newTestCoordinator(fastConfig(), session, oneDevice(), &countingFetcher{})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	require.NoError(t, c.Start(context.Background()))

	handshakes, _, _ := session.counts()
	assert.Equal(t, 1, handshakes)
}

func TestStopIdempotent(t *testing.T) {
	c := newTestCoordinator(fastConfig(), &fakeSession{}, oneDevice(), &countingFetcher{})
	require.NoError(t, c.Start(context.Background()))

	c.Stop()
	c.Stop()
	assert.Equal(t, connection.StateIdle, c.State())
}

func TestFailureThresholdTriggersOneRefresh(t *testing.T) {
	session := &fakeSession{handshakeErr: errors.New("503")}
	fetcher := &countingFetcher{}
	cfg := fastConfig()
	cfg.FailureThreshold = 3
	c := newTestCoordinator(cfg, session, oneDevice(), fetcher)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	// 1 bootstrap call, then exactly 1 refresh call when the
	// consecutive-failure count crosses the threshold.
	assert.Eventually(t, func() bool {
		return fetcher.count() == 2
	}, 2*time.Second, 5*time.Millisecond)

	// Failures keep accumulating well past the threshold; no second
	// refresh until a successful connect resets the crossing.
	assert.Eventually(t, func() bool {
		h, _, _ := session.counts()
		return h > 10
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, fetcher.count())
}

func TestMidSessionBreaksDoNotCountAsConnectFailures(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		if n == 1 {
			return []engineio.Packet{devDataPacket()}, nil
		}
		return nil, fmt.Errorf("%w: connection reset", transport.ErrTransport)
	}
	fetcher := &countingFetcher{}
	cfg := fastConfig()
	cfg.FailureThreshold = 1
	c := newTestCoordinator(cfg, session, oneDevice(), fetcher)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	// Every session breaks right after connecting; each reconnect
	// succeeds, so the connect-failure counter never advances and the
	// REST fallback never fires.
	assert.Eventually(t, func() bool {
		h, _, _ := session.counts()
		return h > 5
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, fetcher.count())
}

func TestPingAnswersWithPong(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		switch n {
		case 1:
			return []engineio.Packet{devDataPacket()}, nil
		case 2:
			return []engineio.Packet{{Raw: "2"}}, nil
		default:
			return nil, transport.ErrPollTimeout
		}
	}
	c := newTestCoordinator(fastConfig(), session, oneDevice(), &countingFetcher{})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	assert.Eventually(t, func() bool {
		_, _, pongs := session.counts()
		return pongs == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCloseFrameReconnects(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		if n == 1 {
			return []engineio.Packet{devDataPacket()}, nil
		}
		return []engineio.Packet{{Raw: "1"}}, nil
	}
	c := newTestCoordinator(fastConfig(), session, oneDevice(), &countingFetcher{})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	assert.Eventually(t, func() bool {
		h, _, _ := session.counts()
		return h >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestIdleWatchdogTearsSessionDown(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		if n == 1 {
			return []engineio.Packet{devDataPacket()}, nil
		}
		return nil, transport.ErrPollTimeout
	}
	cfg := fastConfig()
	cfg.IdleWindow = 20 * time.Millisecond
	c := newTestCoordinator(cfg, session, oneDevice(), &countingFetcher{})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	// Polls keep timing out with no frames; the idle watchdog expires
	// and forces a reconnect.
	assert.Eventually(t, func() bool {
		h, _, _ := session.counts()
		return h >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNoopsKeepSessionAlive(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		if n == 1 {
			return []engineio.Packet{devDataPacket()}, nil
		}
		return []engineio.Packet{{Raw: "6"}}, nil
	}
	cfg := fastConfig()
	cfg.IdleWindow = 30 * time.Millisecond
	c := newTestCoordinator(cfg, session, oneDevice(), &countingFetcher{})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	time.Sleep(150 * time.Millisecond)
	handshakes, _, _ := session.counts()
	assert.Equal(t, 1, handshakes, "no-op frames must reset the idle watchdog")
}

func TestStaleWatchdogIgnoresFruitlessEvents(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		if n == 1 {
			return []engineio.Packet{devDataPacket()}, nil
		}
		// Events that publish nothing keep the connection busy
		// without ever refreshing any zone.
		return []engineio.Packet{{Raw: fmt.Sprintf(`42%s,["noise",{}]`, testNamespace)}}, nil
	}
	cfg := fastConfig()
	cfg.StaleWindow = 40 * time.Millisecond
	c := newTestCoordinator(cfg, session, oneDevice(), &countingFetcher{})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	// The idle watchdog stays fed by the steady frames, but the
	// staleness watchdog must still force a reconnect.
	assert.Eventually(t, func() bool {
		h, _, _ := session.counts()
		return h >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestKeepaliveRerequestsSnapshot(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		if n == 1 {
			return []engineio.Packet{devDataPacket()}, nil
		}
		return []engineio.Packet{{Raw: "6"}}, nil
	}
	cfg := fastConfig()
	cfg.KeepaliveEvery = 5
	c := newTestCoordinator(cfg, session, oneDevice(), &countingFetcher{})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	// One request from the connect sequence, then more from the
	// keepalive counter.
	assert.Eventually(t, func() bool {
		_, reqs, _ := session.counts()
		return reqs >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRequestRefreshConnected(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		if n == 1 {
			return []engineio.Packet{devDataPacket()}, nil
		}
		return nil, transport.ErrPollTimeout
	}
	fetcher := &countingFetcher{}
	cfg := fastConfig()
	cfg.KeepaliveEvery = 0
	c := newTestCoordinator(cfg, session, oneDevice(), fetcher)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Eventually(t, func() bool {
		return c.State() == connection.StatePolling
	}, time.Second, 5*time.Millisecond)

	_, before, _ := session.counts()
	require.NoError(t, c.RequestRefresh(context.Background()))

	assert.Eventually(t, func() bool {
		_, reqs, _ := session.counts()
		return reqs == before+1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, fetcher.count(), "connected refresh must not touch REST")
}

func TestRequestRefreshDisconnected(t *testing.T) {
	session := &fakeSession{handshakeErr: errors.New("503")}
	fetcher := &countingFetcher{}
	c := newTestCoordinator(fastConfig(), session, oneDevice(), fetcher)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	before := fetcher.count()
	require.NoError(t, c.RequestRefresh(context.Background()))
	assert.Greater(t, fetcher.count(), before)
}

func TestRequestRefreshBeforeStart(t *testing.T) {
	c := newTestCoordinator(fastConfig(), &fakeSession{}, oneDevice(), &countingFetcher{})
	assert.Error(t, c.RequestRefresh(context.Background()))
}

func TestSubscribeSeesUpdates(t *testing.T) {
	session := &fakeSession{}
	session.pollFn = func(n int) ([]engineio.Packet, error) {
		switch n {
		case 1:
			return []engineio.Packet{devDataPacket()}, nil
		case 2:
			return []engineio.Packet{{Raw: fmt.Sprintf(
				`42%s,["update",{"path":"/acm/2/status","body":{"mode":"off"}}]`,
				testNamespace,
			)}}, nil
		default:
			return nil, transport.ErrPollTimeout
		}
	}
	c := newTestCoordinator(fastConfig(), session, oneDevice(), &countingFetcher{})

	var mu sync.Mutex
	var lastMode any
	id := c.Subscribe(func(snap state.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if zone, ok := snap["D1_zone2"]; ok {
			lastMode = zone.Status["mode"]
		}
	})
	defer c.Unsubscribe(id)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lastMode == "off"
	}, time.Second, 5*time.Millisecond)
}
