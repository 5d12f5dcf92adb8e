package state

import (
	"fmt"
	"maps"
)

// DeviceContext identifies the bound device and its group.
// Discovered once at bootstrap and shared read-only across zones.
type DeviceContext struct {
	// DeviceID is the vendor device identifier.
	DeviceID string

	// DeviceName is the user-assigned device name.
	DeviceName string

	// GroupID is the vendor group (home) identifier.
	GroupID string

	// GroupName is the user-assigned group name.
	GroupName string
}

// ZoneState is the complete state of one zone.
//
// Status, Setup, and Version are opaque key→value mappings: recognized
// keys (mtemp, stemp, mode, ...) are interpreted by consumers, while
// unrecognized keys are preserved for forward compatibility.
type ZoneState struct {
	// ZoneID is the zone address within the device.
	ZoneID int

	// Name is the user-assigned zone name.
	Name string

	// Device is the owning device context.
	Device DeviceContext

	// Status holds live readings and the active mode.
	Status map[string]any

	// Setup holds configuration values.
	Setup map[string]any

	// Version holds firmware/hardware version info.
	Version map[string]any
}

// Node is one zone entry of a full device snapshot, either pushed by
// the server as a dev_data event or assembled by the REST fallback.
type Node struct {
	Addr    int            `json:"addr"`
	Name    string         `json:"name"`
	Status  map[string]any `json:"status"`
	Setup   map[string]any `json:"setup"`
	Version map[string]any `json:"version"`
}

// ZoneKey derives the store key for a device/zone pair.
func ZoneKey(deviceID string, zoneID int) string {
	return fmt.Sprintf("%s_zone%d", deviceID, zoneID)
}

// Field selects which sub-map of a zone a partial update targets.
type Field uint8

const (
	// FieldStatus targets the status sub-map.
	FieldStatus Field = iota

	// FieldSetup targets the setup sub-map.
	FieldSetup
)

// String returns the field name as it appears in update paths.
func (f Field) String() string {
	switch f {
	case FieldStatus:
		return "status"
	case FieldSetup:
		return "setup"
	default:
		return "unknown"
	}
}

// cloneMap shallow-copies a sub-map so published snapshots never share
// mutable data with callers. Returns nil for nil input.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
