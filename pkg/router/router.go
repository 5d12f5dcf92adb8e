package router

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fr33mang/helki-go/pkg/engineio"
	"github.com/fr33mang/helki-go/pkg/log"
	"github.com/fr33mang/helki-go/pkg/state"
)

// Event names pushed by the vendor server.
const (
	// EventUpdate is a partial zone update.
	EventUpdate = "update"

	// EventDevData is a full device snapshot.
	EventDevData = "dev_data"
)

// updatePayload is the body of an "update" event.
type updatePayload struct {
	Path string         `json:"path"`
	Body map[string]any `json:"body"`
}

// devDataPayload is the body of a "dev_data" event.
type devDataPayload struct {
	Nodes []state.Node `json:"nodes"`
}

// Router applies decoded events to the state store.
type Router struct {
	store     *state.Store
	dev       state.DeviceContext
	namespace string
	logger    log.Logger
}

// New creates a router writing into store on behalf of the bound
// device. Events carrying the given namespace prefix are unwrapped.
func New(store *state.Store, dev state.DeviceContext, namespace string, logger log.Logger) *Router {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Router{
		store:     store,
		dev:       dev,
		namespace: namespace,
		logger:    logger,
	}
}

// HandleEvent dispatches one event packet. It reports whether a state
// update was published, so the supervisor can feed its staleness
// tracking. Malformed envelopes and unknown event names are dropped.
func (r *Router) HandleEvent(p engineio.Packet) bool {
	body, err := p.EventBody(r.namespace)
	if err != nil {
		return false
	}

	var envelope []json.RawMessage
	if err := json.Unmarshal([]byte(body), &envelope); err != nil || len(envelope) == 0 {
		r.logDropped(body, "malformed envelope")
		return false
	}

	var name string
	if err := json.Unmarshal(envelope[0], &name); err != nil {
		r.logDropped(body, "non-string event name")
		return false
	}

	var payload json.RawMessage
	if len(envelope) > 1 {
		payload = envelope[1]
	}

	switch name {
	case EventUpdate:
		return r.handleUpdate(payload)
	case EventDevData:
		return r.handleDevData(payload)
	default:
		// Unknown events are expected; the vendor pushes more than we
		// consume.
		return false
	}
}

// handleUpdate applies a partial update for one zone.
func (r *Router) handleUpdate(payload json.RawMessage) bool {
	var update updatePayload
	if err := json.Unmarshal(payload, &update); err != nil {
		r.logDropped(string(payload), "malformed update payload")
		return false
	}

	zoneID, field, ok := parseUpdatePath(update.Path)
	if !ok {
		// Paths like "/connected" address the device, not a zone.
		return false
	}

	key := state.ZoneKey(r.dev.DeviceID, zoneID)
	return r.store.ApplyPartial(key, field, update.Body)
}

// handleDevData applies a full device snapshot.
func (r *Router) handleDevData(payload json.RawMessage) bool {
	var data devDataPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		r.logDropped(string(payload), "malformed dev_data payload")
		return false
	}
	if len(data.Nodes) == 0 {
		return false
	}

	r.store.ApplyFull(data.Nodes, r.dev)
	return true
}

// parseUpdatePath extracts the zone address and target field from an
// update path ("/acm/<addr>" or "/acm/<addr>/<status|setup>").
// The field defaults to status when the path omits it; any other
// explicit kind is rejected so a foreign body never overwrites a
// known field.
func parseUpdatePath(path string) (zoneID int, field state.Field, ok bool) {
	if !strings.HasPrefix(path, "/acm/") {
		return 0, 0, false
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return 0, 0, false
	}

	zoneID, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}

	field = state.FieldStatus
	if len(parts) > 2 {
		switch parts[2] {
		case "status":
		case "setup":
			field = state.FieldSetup
		default:
			return 0, 0, false
		}
	}
	return zoneID, field, true
}

// logDropped records a dropped event at the wire layer.
func (r *Router) logDropped(body, reason string) {
	const maxLogged = 256
	if len(body) > maxLogged {
		body = body[:maxLogged]
	}
	r.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerWire,
		Category:  log.CategoryError,
		DeviceID:  r.dev.DeviceID,
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: reason,
			Context: body,
		},
	})
}
