// Package eventstore is the append-only record of the Events appended to
// it (the runtime forwards them explicitly through Runtime.RecordEvent),
// indexed by kind and by subject for replay and introspection
// (spec §3.H). Grounded on the append-only log pattern in
// rishavpaul-system-design's order-matching-engine/internal/events/log.go,
// adapted to index by slice offset rather than pointer so the store stays
// a single contiguous allocation.
package eventstore

import (
	"sync"

	"tradecore/pkg/types"
)

// Store is an in-memory, append-only event log. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	events     []types.Event
	byKind     map[types.EventKind][]int
	bySubject  map[string][]int
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		byKind:    make(map[types.EventKind][]int),
		bySubject: make(map[string][]int),
	}
}

// Append records ev and returns its offset in the log.
func (s *Store) Append(ev types.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.events)
	s.events = append(s.events, ev)
	s.byKind[ev.Kind] = append(s.byKind[ev.Kind], idx)
	if ev.Subject != "" {
		s.bySubject[ev.Subject] = append(s.bySubject[ev.Subject], idx)
	}
	return idx
}

// Len returns the number of events recorded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// At returns the event at offset idx.
func (s *Store) At(idx int) (types.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx < 0 || idx >= len(s.events) {
		return types.Event{}, false
	}
	return s.events[idx], true
}

// ByKind returns every recorded event of the given kind, oldest first.
func (s *Store) ByKind(kind types.EventKind) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byKind[kind]
	out := make([]types.Event, len(idxs))
	for i, idx := range idxs {
		out[i] = s.events[idx]
	}
	return out
}

// BySubject returns every recorded event about the given subject id,
// oldest first.
func (s *Store) BySubject(subject string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.bySubject[subject]
	out := make([]types.Event, len(idxs))
	for i, idx := range idxs {
		out[i] = s.events[idx]
	}
	return out
}

// All returns every recorded event, oldest first. Intended for
// introspection and tests, not the hot path.
func (s *Store) All() []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ForOrder returns every recorded event whose Subject is orderID, oldest
// first. Named to match spec.md §4.H's get_for_order accessor; Subject
// carries the same canonical id regardless of what kind of thing it
// names, so this is BySubject under the name callers expect for orders.
func (s *Store) ForOrder(orderID string) []types.Event { return s.BySubject(orderID) }

// ForPosition returns every recorded event whose Subject is positionID,
// oldest first (spec.md §4.H's get_for_position). No component in this
// runtime currently emits position-subject events — per-order bookkeeping
// only, position/PnL tracking is a non-goal — so this will be empty until
// one does; kept so a future position-aware component has a ready home.
func (s *Store) ForPosition(positionID string) []types.Event { return s.BySubject(positionID) }

// ForInstrument returns every recorded event whose Subject is the given
// instrument id, oldest first (spec.md §4.H's get_for_instrument).
func (s *Store) ForInstrument(instrument string) []types.Event { return s.BySubject(instrument) }

// Clear empties the store and all indices.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.byKind = make(map[types.EventKind][]int)
	s.bySubject = make(map[string][]int)
}

// Count returns the number of events recorded, identical to Len; kept as
// a separate name to match spec.md §4.H's "count" operation verbatim.
func (s *Store) Count() int { return s.Len() }
