package filter

import (
	"slices"
	"sync"
)

// Store is the single filter state shared by every surface that edits it
// (desktop panel, mobile drawer, sticky bar). All mutations go through
// Toggle, Set or Clear; subscribers are notified after each change, in the
// order the changes were applied. Subscribers may read the store but must not
// mutate it.
type Store struct {
	mu     sync.RWMutex
	state  State
	nextID int
	subs   map[int]func(State)

	// notifyMu is taken before mu is released so deliveries keep mutation order.
	notifyMu sync.Mutex
}

// NewStore returns a Store holding {"all"}.
func NewStore() *Store {
	return &Store{
		state: Default(),
		subs:  make(map[int]func(State)),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state)
}

// Toggle applies the toggle contract to tag and returns the new state.
func (s *Store) Toggle(tag string) State {
	return s.update(func(cur State) State { return Toggle(cur, tag) })
}

// Set replaces the state with tags, normalized by New.
func (s *Store) Set(tags ...string) State {
	return s.update(func(State) State { return New(tags...) })
}

// Clear resets the state to {"all"}.
func (s *Store) Clear() State {
	return s.update(func(State) State { return Default() })
}

// Subscribe registers fn to receive the state after every change. The
// returned func unregisters it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) update(next func(State) State) State {
	s.mu.Lock()
	s.state = next(s.state)
	snapshot := slices.Clone(s.state)
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range subs {
		fn(slices.Clone(snapshot))
	}
	return snapshot
}
