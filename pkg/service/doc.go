// Package service supervises the realtime session and exposes the
// public synchronization contract.
//
// The Coordinator owns every piece of mutable connection state: the
// push session, the lifecycle state, the reconnect backoff, the
// consecutive-failure counter and the two watchdogs. A single
// listener goroutine drives the whole lifecycle:
//
//	Idle -> Connecting --ok--> Joined -> Polling
//	           ^   |                       |
//	           |  fail                break / watchdog
//	           |   v                       v
//	           +- Error <- backoff <- Stale/Error -> cooldown -+
//	           ^                                               |
//	           +-----------------------------------------------+
//
// Connect failures advance a doubling backoff; each crossing of the
// consecutive-failure threshold triggers exactly one REST refresh so
// readers keep seeing data while the push channel is down. Mid-session
// breaks reconnect after a short cooldown without touching the
// failure counter.
//
// Two watchdogs guard a live session: the idle watchdog trips when no
// frame at all arrives within its window (no-ops count as liveness),
// the staleness watchdog trips when no data event arrives within its
// longer window. Either expiry tears the session down and reconnects.
//
// Readers never block the listener: CurrentSnapshot returns the
// store's immutable snapshot, and Subscribe callbacks run on the
// listener goroutine.
package service
