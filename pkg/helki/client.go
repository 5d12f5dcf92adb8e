package helki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fr33mang/helki-go/pkg/rest"
	"github.com/fr33mang/helki-go/pkg/transport"
)

const (
	// DefaultBaseURL is the production Helki cloud endpoint.
	DefaultBaseURL = "https://api-elnur.helki.com"

	// DevicesPath lists the account's devices grouped by home.
	DevicesPath = "/api/v2/grouped_devs"

	// zoneStatusPath is the per-zone status resource, read and written.
	zoneStatusPath = "/api/v2/devs/%s/acm/%d/status"
)

// DefaultZones are the zone addresses present on every known heater
// model. Used when the realtime channel has not yet delivered the
// device's node list.
var DefaultZones = []int{2, 3}

var (
	// ErrRequest indicates the cloud rejected a request.
	ErrRequest = errors.New("request rejected")

	// ErrDecode indicates a response body that could not be decoded.
	ErrDecode = errors.New("undecodable response")
)

// Client talks to the Helki cloud REST API.
type Client struct {
	requester transport.Requester
	baseURL   string
}

// NewClient creates a client against the production endpoint.
func NewClient(requester transport.Requester) *Client {
	return NewClientWithBaseURL(requester, DefaultBaseURL)
}

// NewClientWithBaseURL creates a client against a custom endpoint.
func NewClientWithBaseURL(requester transport.Requester, baseURL string) *Client {
	return &Client{
		requester: requester,
		baseURL:   baseURL,
	}
}

// group is one home in the grouped device listing.
type group struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Devs []groupedDev `json:"devs"`
}

// groupedDev is one device inside a group.
type groupedDev struct {
	DevID string `json:"dev_id"`
	Name  string `json:"name"`
}

// Devices lists all devices of the account, flattened across groups.
// Each device carries its group identity and the default zone
// addresses.
func (c *Client) Devices(ctx context.Context) ([]rest.Device, error) {
	resp, err := c.requester.Do(ctx, http.MethodGet, c.baseURL+DevicesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: listing devices: status %d", ErrRequest, resp.Status)
	}

	var groups []group
	if err := json.Unmarshal(resp.Body, &groups); err != nil {
		return nil, fmt.Errorf("%w: device listing: %v", ErrDecode, err)
	}

	var devices []rest.Device
	for _, g := range groups {
		for _, d := range g.Devs {
			devices = append(devices, rest.Device{
				ID:        d.DevID,
				Name:      d.Name,
				GroupID:   g.ID,
				GroupName: g.Name,
				Zones:     DefaultZones,
			})
		}
	}
	return devices, nil
}

// ZoneStatus fetches the live status map of one zone.
func (c *Client) ZoneStatus(ctx context.Context, deviceID string, zoneID int) (map[string]any, error) {
	resp, err := c.requester.Do(ctx, http.MethodGet, c.zoneURL(deviceID, zoneID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching zone %d status: %w", zoneID, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: zone %d status: status %d", ErrRequest, zoneID, resp.Status)
	}

	var status map[string]any
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return nil, fmt.Errorf("%w: zone %d status: %v", ErrDecode, zoneID, err)
	}
	return status, nil
}

// SetTemperature sets the target temperature of a zone in Celsius.
// A non-empty mode is sent alongside; ModeModifiedAuto is the usual
// companion for a manual setpoint.
func (c *Client) SetTemperature(ctx context.Context, deviceID string, zoneID int, temperature float64, mode Mode) error {
	body := map[string]any{
		"stemp": strconv.FormatFloat(temperature, 'f', -1, 64),
		"units": "C",
	}
	if mode != "" {
		body["mode"] = string(mode)
	}
	return c.SetControl(ctx, deviceID, zoneID, body)
}

// SetMode sets the operating mode of a zone.
func (c *Client) SetMode(ctx context.Context, deviceID string, zoneID int, mode Mode) error {
	return c.SetControl(ctx, deviceID, zoneID, map[string]any{
		"mode": string(mode),
	})
}

// SetControl posts a raw control body to a zone's status resource.
// The body carries only the fields being changed.
func (c *Client) SetControl(ctx context.Context, deviceID string, zoneID int, control map[string]any) error {
	payload, err := json.Marshal(control)
	if err != nil {
		return fmt.Errorf("encoding control body: %w", err)
	}

	resp, err := c.requester.Do(ctx, http.MethodPost, c.zoneURL(deviceID, zoneID), payload)
	if err != nil {
		return fmt.Errorf("controlling zone %d: %w", zoneID, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: controlling zone %d: status %d", ErrRequest, zoneID, resp.Status)
	}
	return nil
}

func (c *Client) zoneURL(deviceID string, zoneID int) string {
	return c.baseURL + fmt.Sprintf(zoneStatusPath, deviceID, zoneID)
}

// Compile-time interface satisfaction checks.
var (
	_ rest.DeviceDirectory = (*Client)(nil)
	_ rest.StatusFetcher   = (*Client)(nil)
)
