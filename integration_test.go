package helki_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fr33mang/helki-go/pkg/connection"
	"github.com/fr33mang/helki-go/pkg/helki"
	"github.com/fr33mang/helki-go/pkg/service"
	"github.com/fr33mang/helki-go/pkg/transport"
)

const (
	cloudBase = "http://cloud.test"
	namespace = transport.DefaultNamespace
)

// fakeCloud simulates the vendor cloud: the grouped device listing,
// per-zone REST status, and the long-polling realtime channel.
type fakeCloud struct {
	mu sync.Mutex

	// Realtime channel state
	socketDown bool
	sid        int
	joined     bool
	queue      []string // pending packets for the next poll

	// REST state per zone address
	statuses map[int]map[string]any

	controlPosts []string
	pongs        int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		statuses: map[int]map[string]any{
			2: {"mode": "auto", "stemp": "20.0"},
			3: {"mode": "off", "stemp": "15.0"},
		},
	}
}

// push queues a realtime packet for delivery on the next poll.
func (f *fakeCloud) push(packet string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, packet)
}

func (f *fakeCloud) pushUpdate(zone int, kind string, body map[string]any) {
	raw, _ := json.Marshal(body)
	f.push(fmt.Sprintf(`42%s,["update",{"path":"/acm/%d/%s","body":%s}]`, namespace, zone, kind, raw))
}

func (f *fakeCloud) pushDevData() {
	f.push(fmt.Sprintf(
		`42%s,["dev_data",{"nodes":[`+
			`{"addr":2,"name":"Living Room","status":{"mode":"auto","stemp":"20.0"}},`+
			`{"addr":3,"name":"Bedroom","status":{"mode":"off","stemp":"15.0"}}]}]`,
		namespace,
	))
}

func (f *fakeCloud) Do(_ context.Context, method, rawURL string, body []byte) (*transport.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	// Pace realtime polls so the listener does not spin hot against
	// an always-ready fake.
	if method == http.MethodGet && u.Path == transport.DefaultSocketPath && u.Query().Get("sid") != "" {
		time.Sleep(2 * time.Millisecond)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case u.Path == "/api/v2/grouped_devs":
		return &transport.Response{Status: 200, Body: []byte(
			`[{"id":"g1","name":"Home","devs":[{"dev_id":"D1","name":"House"}]}]`,
		)}, nil

	case strings.HasPrefix(u.Path, "/api/v2/devs/D1/acm/"):
		var zone int
		fmt.Sscanf(u.Path, "/api/v2/devs/D1/acm/%d/status", &zone)
		status, ok := f.statuses[zone]
		if !ok {
			return &transport.Response{Status: 404}, nil
		}
		if method == http.MethodPost {
			f.controlPosts = append(f.controlPosts, string(body))
			return &transport.Response{Status: 200, Body: []byte(`{}`)}, nil
		}
		raw, _ := json.Marshal(status)
		return &transport.Response{Status: 200, Body: raw}, nil

	case u.Path == transport.DefaultSocketPath:
		return f.socketExchange(method, u.Query(), body)
	}

	return &transport.Response{Status: 404}, nil
}

func (f *fakeCloud) socketExchange(method string, q url.Values, body []byte) (*transport.Response, error) {
	if f.socketDown {
		return &transport.Response{Status: 503}, nil
	}

	sid := q.Get("sid")
	if method == http.MethodGet && sid == "" {
		// Handshake.
		f.sid++
		f.joined = false
		f.queue = nil
		open := fmt.Sprintf(`0{"sid":"S%d","upgrades":[],"pingInterval":25000,"pingTimeout":60000}`, f.sid)
		return &transport.Response{Status: 200, Body: []byte(open)}, nil
	}
	if sid != fmt.Sprintf("S%d", f.sid) {
		return &transport.Response{Status: 400}, nil
	}

	if method == http.MethodPost {
		frame := string(body)
		switch {
		case strings.Contains(frame, "40"+namespace):
			f.joined = true
			f.queue = append(f.queue, "40"+namespace)
		case strings.Contains(frame, `"dev_data"`):
			if f.joined {
				raw, _ := json.Marshal(map[string]any{"nodes": []map[string]any{
					{"addr": 2, "name": "Living Room", "status": f.statuses[2]},
					{"addr": 3, "name": "Bedroom", "status": f.statuses[3]},
				}})
				f.queue = append(f.queue, fmt.Sprintf(`42%s,["dev_data",%s]`, namespace, raw))
			}
		case frame == "1:3":
			f.pongs++
		}
		return &transport.Response{Status: 200, Body: []byte("ok")}, nil
	}

	// Poll: drain the queue, or report a no-op.
	if len(f.queue) == 0 {
		return &transport.Response{Status: 200, Body: []byte("6")}, nil
	}
	payload := strings.Join(f.queue, "\x1e")
	f.queue = nil
	return &transport.Response{Status: 200, Body: []byte(payload)}, nil
}

func (f *fakeCloud) pongCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pongs
}

func (f *fakeCloud) setSocketDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.socketDown = down
}

type staticToken string

func (t staticToken) AccessToken(context.Context) (string, error) {
	return string(t), nil
}

func newCoordinator(cloud *fakeCloud) (*service.Coordinator, *helki.Client) {
	tokens := staticToken("tok123")
	client := helki.NewClientWithBaseURL(cloud, cloudBase)

	cfg := service.DefaultConfig()
	cfg.PollTimeout = 100 * time.Millisecond
	cfg.BootstrapTimeout = 500 * time.Millisecond
	cfg.Cooldown = 5 * time.Millisecond
	cfg.Backoff = connection.BackoffConfig{
		Initial:    5 * time.Millisecond,
		Max:        20 * time.Millisecond,
		Multiplier: 2,
	}

	coord := service.NewCoordinator(cfg, client, client, func(deviceID string) service.PushSession {
		return transport.NewSession(transport.Config{
			BaseURL:    cloudBase,
			SocketPath: transport.DefaultSocketPath,
			Namespace:  namespace,
			DeviceID:   deviceID,
		}, cloud, tokens)
	})
	return coord, client
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestE2E_PushSynchronization runs the full stack against a simulated
// cloud: handshake, namespace join, initial node list, then a partial
// update flowing into the snapshot.
func TestE2E_PushSynchronization(t *testing.T) {
	cloud := newFakeCloud()
	coord, _ := newCoordinator(cloud)

	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer coord.Stop()

	snap := coord.CurrentSnapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 zones after bootstrap, got %d", len(snap))
	}
	zone, ok := snap["D1_zone2"]
	if !ok {
		t.Fatal("zone D1_zone2 missing from snapshot")
	}
	if zone.Name != "Living Room" {
		t.Errorf("zone name = %q, want %q", zone.Name, "Living Room")
	}
	if zone.Device.DeviceID != "D1" || zone.Device.GroupName != "Home" {
		t.Errorf("device context = %+v", zone.Device)
	}

	// A partial update flows into the snapshot without disturbing the
	// other zone.
	cloud.pushUpdate(2, "status", map[string]any{"mode": "modified_auto", "stemp": "22.0"})
	waitFor(t, 2*time.Second, func() bool {
		return coord.CurrentSnapshot()["D1_zone2"].Status["mode"] == "modified_auto"
	}, "update never reached the snapshot")

	if got := coord.CurrentSnapshot()["D1_zone3"].Status["mode"]; got != "off" {
		t.Errorf("untouched zone mode = %v, want off", got)
	}
}

// TestE2E_RESTBootstrapFallback starts with the realtime channel down
// and verifies the snapshot is seeded over REST instead.
func TestE2E_RESTBootstrapFallback(t *testing.T) {
	cloud := newFakeCloud()
	cloud.setSocketDown(true)
	coord, _ := newCoordinator(cloud)

	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer coord.Stop()

	snap := coord.CurrentSnapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 zones from REST bootstrap, got %d", len(snap))
	}
	if got := snap["D1_zone3"].Status["mode"]; got != "off" {
		t.Errorf("zone 3 mode = %v, want off", got)
	}

	// REST never learns zone names.
	if snap["D1_zone2"].Name != "" {
		t.Errorf("REST bootstrap set a zone name: %q", snap["D1_zone2"].Name)
	}

	// Once the channel recovers, the supervisor reconnects and the
	// node list fills the names in.
	cloud.setSocketDown(false)
	waitFor(t, 5*time.Second, func() bool {
		return coord.CurrentSnapshot()["D1_zone2"].Name == "Living Room"
	}, "reconnect never delivered the node list")
}

// TestE2E_PingPong verifies the server's pings are answered on the
// session they arrived on.
func TestE2E_PingPong(t *testing.T) {
	cloud := newFakeCloud()
	coord, _ := newCoordinator(cloud)

	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer coord.Stop()

	cloud.push("2")
	waitFor(t, 2*time.Second, func() bool {
		return cloud.pongCount() == 1
	}, "ping was never answered")
}

// TestE2E_ControlRoundTrip sends a control write over REST and the
// resulting update over the realtime channel, the way the cloud
// confirms writes.
func TestE2E_ControlRoundTrip(t *testing.T) {
	cloud := newFakeCloud()
	coord, client := newCoordinator(cloud)

	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer coord.Stop()

	if err := client.SetTemperature(context.Background(), "D1", 2, 22.5, helki.ModeModifiedAuto); err != nil {
		t.Fatalf("SetTemperature failed: %v", err)
	}

	cloud.mu.Lock()
	posts := len(cloud.controlPosts)
	cloud.mu.Unlock()
	if posts != 1 {
		t.Fatalf("expected 1 control post, got %d", posts)
	}

	cloud.pushUpdate(2, "status", map[string]any{"mode": "modified_auto", "stemp": "22.5"})
	waitFor(t, 2*time.Second, func() bool {
		return coord.CurrentSnapshot()["D1_zone2"].Status["stemp"] == "22.5"
	}, "confirmation update never arrived")
}
