package pipeline

import "sync"

// Store holds the latest committed Snapshot. Refreshes may overlap; each one
// takes a sequence number from Begin. A result is discarded when a newer
// refresh has already committed or is still running, so a slow refresh can
// never overwrite a newer result. A refresh that gives up calls Abort and no
// longer blocks older ones.
type Store struct {
	mu       sync.RWMutex
	issued   uint64
	inflight map[uint64]struct{}
	current  *Snapshot
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{inflight: make(map[uint64]struct{})}
}

// Begin issues the next sequence number.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.inflight[s.issued] = struct{}{}
	return s.issued
}

// Abort withdraws seq without committing. It is a no-op for sequences that
// already committed or were aborted.
func (s *Store) Abort(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, seq)
}

// Commit installs snap under seq and reports whether it did.
func (s *Store) Commit(seq uint64, snap *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, seq)

	if s.current != nil && seq <= s.current.Seq {
		return false
	}
	for other := range s.inflight {
		if other > seq {
			return false
		}
	}
	snap.Seq = seq
	s.current = snap
	return true
}

// Current returns the committed snapshot, or nil before the first commit.
// Snapshots are immutable once committed.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
