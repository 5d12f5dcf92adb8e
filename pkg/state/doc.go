// Package state holds the zone state store for one bound device.
//
// The store is the single point of truth for zone state. All writes
// flow through the supervisor/router pipeline (a single writer); reads
// are unlimited and lock-free.
//
// # Publication Model
//
// Every update produces a complete new top-level snapshot which is
// swapped in atomically. Readers therefore always observe a consistent
// point-in-time view and never a half-applied update. Snapshots are
// immutable by contract: neither the store nor consumers mutate a
// published snapshot or the maps it references.
//
// Zone keys, once observed, persist for the process lifetime. Zones
// are never removed by this subsystem.
package state
