package engineio

import (
	"encoding/json"
	"errors"
	"strings"
)

// Packet errors.
var (
	// ErrNotHandshake indicates the packet is not an open packet.
	ErrNotHandshake = errors.New("packet is not a handshake")

	// ErrNotEvent indicates the packet is not a Socket.IO event.
	ErrNotEvent = errors.New("packet is not an event")

	// ErrMalformedEvent indicates the event envelope could not be parsed.
	ErrMalformedEvent = errors.New("malformed event envelope")
)

// Type classifies an Engine.IO/Socket.IO packet by its leading token.
type Type uint8

const (
	// TypeUnknown is an unclassifiable packet.
	TypeUnknown Type = iota

	// TypeOpen is the handshake packet ("0" + JSON body).
	TypeOpen

	// TypeClose indicates the server is closing the session ("1").
	TypeClose

	// TypePing is a server heartbeat ("2"); the client replies with pong.
	TypePing

	// TypePong is a heartbeat reply ("3").
	TypePong

	// TypeNamespaceAck acknowledges a namespace connect ("40").
	TypeNamespaceAck

	// TypeEvent is a Socket.IO event ("42" + JSON array).
	TypeEvent

	// TypeNoop is a no-op filler packet ("6").
	TypeNoop
)

// String returns the packet type name.
func (t Type) String() string {
	switch t {
	case TypeOpen:
		return "OPEN"
	case TypeClose:
		return "CLOSE"
	case TypePing:
		return "PING"
	case TypePong:
		return "PONG"
	case TypeNamespaceAck:
		return "NAMESPACE_ACK"
	case TypeEvent:
		return "EVENT"
	case TypeNoop:
		return "NOOP"
	default:
		return "UNKNOWN"
	}
}

// Packet is one decoded Engine.IO packet.
type Packet struct {
	// Raw is the full packet text including the leading token.
	Raw string
}

// Type classifies the packet by its leading token.
//
// Two-character tokens ("40", "42") are checked before one-character
// tokens so that a namespace ack is never misread as an open packet.
func (p Packet) Type() Type {
	switch {
	case p.Raw == "":
		return TypeUnknown
	case strings.HasPrefix(p.Raw, "42"):
		return TypeEvent
	case strings.HasPrefix(p.Raw, "40"):
		return TypeNamespaceAck
	case strings.HasPrefix(p.Raw, "0"):
		return TypeOpen
	case p.Raw == "1":
		return TypeClose
	case p.Raw == "2":
		return TypePing
	case p.Raw == "3":
		return TypePong
	case p.Raw == "6":
		return TypeNoop
	default:
		return TypeUnknown
	}
}

// Handshake is the JSON body of an open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingTimeout  int      `json:"pingTimeout"`
	PingInterval int      `json:"pingInterval"`
}

// DecodeHandshake parses the handshake body of an open packet.
func (p Packet) DecodeHandshake() (Handshake, error) {
	if p.Type() != TypeOpen {
		return Handshake{}, ErrNotHandshake
	}

	var hs Handshake
	if err := json.Unmarshal([]byte(p.Raw[1:]), &hs); err != nil {
		return Handshake{}, err
	}
	return hs, nil
}

// EventBody returns the JSON array text of an event packet with the
// "42" token and any namespace prefix (e.g. "/api/v2/socket_io,")
// stripped.
func (p Packet) EventBody(namespace string) (string, error) {
	if p.Type() != TypeEvent {
		return "", ErrNotEvent
	}

	body := p.Raw[2:]
	if namespace != "" && strings.HasPrefix(body, namespace+",") {
		body = body[len(namespace)+1:]
	}
	return body, nil
}
