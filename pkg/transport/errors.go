package transport

import "errors"

// Transport errors.
var (
	// ErrProtocol indicates a malformed handshake or an unexpected frame.
	ErrProtocol = errors.New("protocol error")

	// ErrTransport indicates an HTTP-level failure.
	ErrTransport = errors.New("transport error")

	// ErrPollTimeout indicates the poll deadline elapsed with no
	// response. Routine; callers retry without escalating.
	ErrPollTimeout = errors.New("poll timeout")

	// ErrNoSession indicates an operation outside the connected window.
	ErrNoSession = errors.New("no active session")
)
