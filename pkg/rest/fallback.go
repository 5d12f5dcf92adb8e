package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/fr33mang/helki-go/pkg/log"
	"github.com/fr33mang/helki-go/pkg/state"
)

// Device is one entry of the device directory.
type Device struct {
	// ID is the vendor device identifier.
	ID string

	// Name is the user-assigned device name.
	Name string

	// GroupID identifies the group (home) the device belongs to.
	GroupID string

	// GroupName is the user-assigned group name.
	GroupName string

	// Zones lists the known zone addresses of the device.
	Zones []int
}

// Context converts the directory entry into a device context for the
// state store.
func (d Device) Context() state.DeviceContext {
	return state.DeviceContext{
		DeviceID:   d.ID,
		DeviceName: d.Name,
		GroupID:    d.GroupID,
		GroupName:  d.GroupName,
	}
}

// DeviceDirectory enumerates the account's devices with their group
// identity and zone addresses.
type DeviceDirectory interface {
	Devices(ctx context.Context) ([]Device, error)
}

// StatusFetcher fetches the live status map of one zone.
type StatusFetcher interface {
	ZoneStatus(ctx context.Context, deviceID string, zoneID int) (map[string]any, error)
}

// Fallback refreshes the state store through the REST collaborators.
type Fallback struct {
	fetcher StatusFetcher
	store   *state.Store
	logger  log.Logger
}

// NewFallback creates a fallback fetcher writing into store.
func NewFallback(fetcher StatusFetcher, store *state.Store, logger log.Logger) *Fallback {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Fallback{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
	}
}

// Bootstrap seeds the store with one node per known zone address of
// the device. Zones whose status fetch fails are skipped; the store is
// published once with whatever succeeded. Returns the number of zones
// seeded.
func (f *Fallback) Bootstrap(ctx context.Context, dev Device) int {
	var nodes []state.Node
	for _, zoneID := range dev.Zones {
		status, err := f.fetcher.ZoneStatus(ctx, dev.ID, zoneID)
		if err != nil {
			f.logSkip(dev.ID, zoneID, "bootstrap", err)
			continue
		}
		nodes = append(nodes, state.Node{
			Addr:   zoneID,
			Status: status,
		})
	}

	if len(nodes) > 0 {
		f.store.ApplyFull(nodes, dev.Context())
	}
	return len(nodes)
}

// Refresh re-fetches the status of every zone currently in the store
// and applies each result as a partial update. Per-zone failures are
// skipped. Returns the number of zones refreshed.
func (f *Fallback) Refresh(ctx context.Context) int {
	refreshed := 0
	for key, zone := range f.store.Snapshot() {
		if ctx.Err() != nil {
			return refreshed
		}

		status, err := f.fetcher.ZoneStatus(ctx, zone.Device.DeviceID, zone.ZoneID)
		if err != nil {
			f.logSkip(zone.Device.DeviceID, zone.ZoneID, "refresh", err)
			continue
		}

		f.store.ApplyPartial(key, state.FieldStatus, status)
		refreshed++
	}
	return refreshed
}

// logSkip records a skipped zone at the service layer.
func (f *Fallback) logSkip(deviceID string, zoneID int, op string, err error) {
	f.logger.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  deviceID,
		Direction: log.DirectionIn,
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: err.Error(),
			Context: fmt.Sprintf("rest %s zone %d", op, zoneID),
		},
	})
}
