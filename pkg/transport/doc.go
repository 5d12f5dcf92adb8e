// Package transport implements the Engine.IO long-polling session
// against the Helki cloud endpoint.
//
// A [Session] owns one polling connection: it performs the handshake,
// joins the vendor namespace, and exchanges frames over plain HTTP
// GET/POST requests. The HTTP primitive itself is a collaborator
// supplied by the caller through the [Requester] interface; bearer
// tokens come from a [TokenSource] so that token refresh stays outside
// this package.
//
// # Session Lifecycle
//
//	Handshake ── GET, first frame must be an open packet, yields sid
//	JoinNamespace ── POST "40<ns>?token=…&dev_id=…"
//	RequestSnapshot ── POST "42<ns>,[\"dev_data\"]"
//	Poll ── bounded GET, decoded into packets
//	Pong ── POST "3" in reply to a server ping
//
// The session id is valid only between a successful handshake and the
// next disconnect; [Session.Invalidate] ends the window.
//
// # Error Taxonomy
//
//   - [ErrProtocol]: malformed handshake or unexpected first frame
//   - [ErrTransport]: HTTP-level failure (non-2xx, request error)
//   - [ErrPollTimeout]: routine poll deadline, retried by the caller
//   - [ErrNoSession]: operation outside the connected window
package transport
