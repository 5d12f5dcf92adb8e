// Package router decodes Socket.IO event envelopes and applies them to
// the state store.
//
// Two event names are understood:
//
//   - "update": a partial update for one zone's status or setup sub-map,
//     addressed by a path of the form "/acm/<zoneAddr>/<status|setup>".
//     Updates for unknown zones are ignored; a zone must first be
//     learned through a full snapshot.
//   - "dev_data": a full device snapshot carrying one node per zone.
//
// Unknown event names and malformed payloads are ignored without
// error; the push channel is advisory and the reconnect/fallback
// machinery bounds staleness.
package router
