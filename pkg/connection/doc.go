// Package connection provides the building blocks of the push-channel
// lifecycle: the connection state enum, the exponential backoff
// calculator, and the liveness watchdogs.
//
// # Reconnection Backoff
//
// Connect failures back off exponentially:
//
//	5s → 10s → 20s → 40s → 60s (cap)
//
// with optional jitter, resetting to the base interval on the next
// successful connection. Poll timeouts are routine and never advance
// the backoff.
//
// # Liveness Watchdogs
//
// Two independent timers guard the poll loop:
//
//   - idle (40s): no frame at all arrived, no-ops included. The server
//     normally emits at least a no-op per poll cycle, so silence means
//     the session is dead even if HTTP calls still succeed.
//   - staleness (5m): no substantive update arrived even though
//     polling looks healthy. Bounds how long a wedged server session
//     can serve stale state.
//
// Both windows are empirically tuned for the vendor's servers and are
// configurable.
package connection
