package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fr33mang/helki-go/pkg/engineio"
	"github.com/fr33mang/helki-go/pkg/log"
)

// Session defaults matching the vendor service.
const (
	// DefaultSocketPath is the Engine.IO endpoint path.
	DefaultSocketPath = "/socket.io/"

	// DefaultNamespace is the vendor Socket.IO namespace.
	DefaultNamespace = "/api/v2/socket_io"

	// EngineIOVersion is the protocol version query value (EIO=3).
	EngineIOVersion = "3"

	// MaxLogFrameDataSize caps frame data included in log events (4 KB).
	// Larger bodies are truncated in the event, never on the wire.
	MaxLogFrameDataSize = 4096
)

// Config configures a Session.
type Config struct {
	// BaseURL is the service origin, e.g. "https://api-elnur.helki.com".
	BaseURL string

	// SocketPath is the Engine.IO path. Defaults to DefaultSocketPath.
	SocketPath string

	// Namespace is the Socket.IO namespace. Defaults to DefaultNamespace.
	Namespace string

	// DeviceID is the bound device, sent as the dev_id query parameter.
	DeviceID string

	// Logger receives transport and wire events. Nil disables logging.
	Logger log.Logger
}

// Handle identifies one handshaken session. It is regenerated on each
// handshake and invalid outside the connected window.
type Handle struct {
	// SID is the Engine.IO session id.
	SID string

	// PingInterval is the server-announced heartbeat interval.
	PingInterval time.Duration

	// PingTimeout is the server-announced heartbeat timeout.
	PingTimeout time.Duration

	// ConnectionID is a locally generated UUID stamped on log events
	// for this connection attempt.
	ConnectionID string
}

// Session owns one long-polling connection.
//
// Methods are safe for concurrent use, though the supervisor drives
// them from a single goroutine; only RequestSnapshot may additionally
// be called from consumer-triggered refreshes.
type Session struct {
	cfg       Config
	requester Requester
	tokens    TokenSource
	logger    log.Logger

	mu     sync.Mutex
	handle *Handle
}

// NewSession creates a session over the given collaborators.
func NewSession(cfg Config, requester Requester, tokens TokenSource) *Session {
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	return &Session{
		cfg:       cfg,
		requester: requester,
		tokens:    tokens,
		logger:    logger,
	}
}

// Handle returns the current session handle, or nil outside the
// connected window.
func (s *Session) Handle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Invalidate ends the connected window. The previous sid must not be
// used again; a new handshake is required.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = nil
}

// Handshake opens a new Engine.IO session. The previous handle, if
// any, is discarded. The first decoded frame must be an open packet.
func (s *Session) Handshake(ctx context.Context) (*Handle, error) {
	s.Invalidate()

	connID := uuid.New().String()

	u, err := s.endpoint(ctx, "")
	if err != nil {
		return nil, err
	}

	resp, err := s.requester.Do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: handshake: %v", ErrTransport, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: handshake returned HTTP %d", ErrTransport, resp.Status)
	}

	s.logFrame(connID, "", log.DirectionIn, resp.Body)

	packets := engineio.DecodePayload(resp.Body)
	if len(packets) == 0 || packets[0].Type() != engineio.TypeOpen {
		return nil, fmt.Errorf("%w: handshake response carries no open packet", ErrProtocol)
	}

	hs, err := packets[0].DecodeHandshake()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed handshake body: %v", ErrProtocol, err)
	}
	if hs.SID == "" {
		return nil, fmt.Errorf("%w: handshake without sid", ErrProtocol)
	}

	handle := &Handle{
		SID:          hs.SID,
		PingInterval: time.Duration(hs.PingInterval) * time.Millisecond,
		PingTimeout:  time.Duration(hs.PingTimeout) * time.Millisecond,
		ConnectionID: connID,
	}

	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()

	return handle, nil
}

// JoinNamespace sends the namespace connect frame. A non-2xx status is
// logged but not fatal; the vendor server acknowledges asynchronously
// through the poll channel.
func (s *Session) JoinNamespace(ctx context.Context) error {
	handle, err := s.currentHandle()
	if err != nil {
		return err
	}

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("namespace join: %w", err)
	}

	connect := fmt.Sprintf("40%s?token=%s&dev_id=%s", s.cfg.Namespace, token, s.cfg.DeviceID)
	resp, err := s.post(ctx, handle, engineio.EncodePacket(connect))
	if err != nil {
		return err
	}
	if !resp.OK() {
		s.logError(handle, log.LayerTransport,
			fmt.Sprintf("namespace join returned HTTP %d", resp.Status), "join")
	}
	return nil
}

// RequestSnapshot asks the server for a full dev_data snapshot. The
// response arrives later through the poll channel.
func (s *Session) RequestSnapshot(ctx context.Context) error {
	handle, err := s.currentHandle()
	if err != nil {
		return err
	}

	event := fmt.Sprintf(`42%s,["dev_data"]`, s.cfg.Namespace)
	resp, err := s.post(ctx, handle, engineio.EncodePacket(event))
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: snapshot request returned HTTP %d", ErrTransport, resp.Status)
	}
	return nil
}

// Pong replies to a server ping.
func (s *Session) Pong(ctx context.Context) error {
	handle, err := s.currentHandle()
	if err != nil {
		return err
	}

	resp, err := s.post(ctx, handle, engineio.EncodePacket("3"))
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: pong returned HTTP %d", ErrTransport, resp.Status)
	}
	return nil
}

// Poll performs one bounded GET and decodes the response body.
// A deadline expiry maps to ErrPollTimeout, which callers treat as
// routine.
func (s *Session) Poll(ctx context.Context, timeout time.Duration) ([]engineio.Packet, error) {
	handle, err := s.currentHandle()
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u, err := s.endpoint(pollCtx, handle.SID)
	if err != nil {
		return nil, err
	}

	resp, err := s.requester.Do(pollCtx, http.MethodGet, u, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrPollTimeout
		}
		return nil, fmt.Errorf("%w: poll: %v", ErrTransport, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: poll returned HTTP %d", ErrTransport, resp.Status)
	}

	s.logFrame(handle.ConnectionID, handle.SID, log.DirectionIn, resp.Body)

	packets := engineio.DecodePayload(resp.Body)
	for _, p := range packets {
		s.logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: handle.ConnectionID,
			SessionID:    handle.SID,
			DeviceID:     s.cfg.DeviceID,
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     packetCategory(p.Type()),
			Packet: &log.PacketEvent{
				Type: p.Type().String(),
				Size: len(p.Raw),
			},
		})
	}

	return packets, nil
}

// Namespace returns the configured Socket.IO namespace.
func (s *Session) Namespace() string {
	return s.cfg.Namespace
}

// currentHandle returns the active handle or ErrNoSession.
func (s *Session) currentHandle() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil, ErrNoSession
	}
	return s.handle, nil
}

// post sends one framed packet to the session endpoint.
func (s *Session) post(ctx context.Context, handle *Handle, frame []byte) (*Response, error) {
	u, err := s.endpoint(ctx, handle.SID)
	if err != nil {
		return nil, err
	}

	s.logFrame(handle.ConnectionID, handle.SID, log.DirectionOut, frame)

	resp, err := s.requester.Do(ctx, http.MethodPost, u, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: post: %v", ErrTransport, err)
	}
	return resp, nil
}

// endpoint builds the socket URL with the standard query parameters.
func (s *Session) endpoint(ctx context.Context, sid string) (string, error) {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("token: %w", err)
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("EIO", EngineIOVersion)
	q.Set("transport", "polling")
	if s.cfg.DeviceID != "" {
		q.Set("dev_id", s.cfg.DeviceID)
	}
	if sid != "" {
		q.Set("sid", sid)
	}

	return s.cfg.BaseURL + s.cfg.SocketPath + "?" + q.Encode(), nil
}

// logFrame records a raw body at the transport layer, truncating large
// payloads in the event only.
func (s *Session) logFrame(connID, sid string, dir log.Direction, body []byte) {
	data := body
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		data = data[:MaxLogFrameDataSize]
		truncated = true
	}

	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		SessionID:    sid,
		DeviceID:     s.cfg.DeviceID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(body),
			Data:      data,
			Truncated: truncated,
		},
	})
}

// logError records a non-fatal transport error.
func (s *Session) logError(handle *Handle, layer log.Layer, msg, op string) {
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: handle.ConnectionID,
		SessionID:    handle.SID,
		DeviceID:     s.cfg.DeviceID,
		Direction:    log.DirectionIn,
		Layer:        layer,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: msg,
			Context: op,
		},
	})
}

// packetCategory maps a packet type to a log category.
func packetCategory(t engineio.Type) log.Category {
	switch t {
	case engineio.TypeEvent, engineio.TypeOpen:
		return log.CategoryMessage
	default:
		return log.CategoryControl
	}
}
