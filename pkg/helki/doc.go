// Package helki is a typed client for the Helki cloud REST API used by
// Elnur Gabarron storage heaters.
//
// The API groups devices into homes; Devices flattens the grouped
// response so each device carries its group identity. Per-zone status
// reads and control writes go through the acm status endpoint:
//
//	GET  /api/v2/grouped_devs
//	GET  /api/v2/devs/<dev>/acm/<zone>/status
//	POST /api/v2/devs/<dev>/acm/<zone>/status
//
// Control writes are partial: the body carries only the fields being
// changed (mode, stemp+units). The cloud confirms a write by pushing
// the resulting status over the realtime channel, so callers should
// not expect the next REST read to reflect the write immediately.
//
// Client implements rest.DeviceDirectory and rest.StatusFetcher.
package helki
