package connection

// State represents the push-channel connection state. It is owned by
// the supervisor; the event router may only write to the store while
// the state is Joined or Polling.
type State uint8

const (
	// StateIdle indicates the supervisor has not been started.
	StateIdle State = iota

	// StateConnecting indicates handshake/join is in progress.
	StateConnecting

	// StateJoined indicates the namespace was joined; polling is about
	// to begin.
	StateJoined

	// StatePolling indicates the steady-state poll loop is running.
	StatePolling

	// StateStale indicates a liveness timer expired; a reconnect is
	// pending.
	StateStale

	// StateError indicates the connection failed; a reconnect is
	// pending.
	StateError

	// StateShuttingDown indicates cooperative cancellation; terminal.
	StateShuttingDown
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateJoined:
		return "JOINED"
	case StatePolling:
		return "POLLING"
	case StateStale:
		return "STALE"
	case StateError:
		return "ERROR"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return "UNKNOWN"
	}
}

// Connected reports whether the push channel is usable for sending.
func (s State) Connected() bool {
	return s == StateJoined || s == StatePolling
}
