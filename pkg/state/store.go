package state

import (
	"maps"
	"sync"
	"sync/atomic"
)

// Snapshot is a complete point-in-time view of all known zones,
// keyed by ZoneKey. Snapshots are immutable by contract.
type Snapshot map[string]ZoneState

// Listener is invoked after every publish with the new snapshot.
// Listeners run on the writer goroutine and must not block.
type Listener func(Snapshot)

// Store holds zone state and publishes immutable snapshots.
//
// Writes must come from a single goroutine (the supervisor/router
// pipeline); reads may come from any number of goroutines.
type Store struct {
	// current always holds a non-nil Snapshot.
	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{
		listeners: make(map[uint64]Listener),
	}
	empty := Snapshot{}
	s.current.Store(&empty)
	return s
}

// Snapshot returns the current published view. The returned map must
// not be mutated.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Len returns the number of known zones.
func (s *Store) Len() int {
	return len(s.Snapshot())
}

// Keys returns the zone keys of the current snapshot.
func (s *Store) Keys() []string {
	snap := s.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	return keys
}

// Subscribe registers a listener invoked after every publish.
// It returns an id for Unsubscribe.
func (s *Store) Subscribe(fn Listener) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.listeners[s.nextID] = fn
	return s.nextID
}

// Unsubscribe removes a listener. Unknown ids are ignored.
func (s *Store) Unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

// ApplyPartial replaces one sub-map of an existing zone and publishes
// the result. It reports whether the update was applied: updates for
// unknown zone keys are a no-op, since a zone must first be learned
// through a full snapshot.
func (s *Store) ApplyPartial(key string, field Field, body map[string]any) bool {
	old := s.Snapshot()
	zone, ok := old[key]
	if !ok {
		return false
	}

	switch field {
	case FieldStatus:
		zone.Status = cloneMap(body)
	case FieldSetup:
		zone.Setup = cloneMap(body)
	default:
		return false
	}

	next := maps.Clone(old)
	next[key] = zone
	s.publish(next)
	return true
}

// ApplyFull creates or merges every node of a full device snapshot and
// publishes exactly once.
//
// A new zone is seeded with the device context. For an existing zone,
// fields present in the node replace the stored values; fields absent
// from the node (empty name, nil sub-maps) keep their previous values.
func (s *Store) ApplyFull(nodes []Node, dev DeviceContext) {
	if len(nodes) == 0 {
		return
	}

	next := maps.Clone(s.Snapshot())
	for _, node := range nodes {
		key := ZoneKey(dev.DeviceID, node.Addr)

		zone, ok := next[key]
		if !ok {
			zone = ZoneState{
				ZoneID: node.Addr,
				Device: dev,
			}
		}

		if node.Name != "" {
			zone.Name = node.Name
		}
		if node.Status != nil {
			zone.Status = cloneMap(node.Status)
		}
		if node.Setup != nil {
			zone.Setup = cloneMap(node.Setup)
		}
		if node.Version != nil {
			zone.Version = cloneMap(node.Version)
		}

		next[key] = zone
	}

	s.publish(next)
}

// publish swaps in the new snapshot and notifies listeners.
func (s *Store) publish(next Snapshot) {
	s.current.Store(&next)

	s.mu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}
