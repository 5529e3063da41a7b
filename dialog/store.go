package dialog

import (
	"sync"
)

// Store is the per-Call collection of Dialog records, keyed by dialog-id.
// Each Call is owned by a single logical task, but the
// mutex guards the map anyway — cheap insurance against a caller that
// doesn't honor the single-writer discipline.
type Store struct {
	mu      sync.Mutex
	dialogs map[string]*Dialog
}

// NewStore creates an empty Dialog Store.
func NewStore() *Store {
	return &Store{dialogs: make(map[string]*Dialog)}
}

// Find returns the Dialog for id, or (nil, false) if absent.
func (s *Store) Find(id string) (*Dialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dialogs[id]
	return d, ok
}

// Update upserts d, enforcing the invariants that must hold across every
// mutation path (P2, P3): a dialog already in StatusStop never changes
// again, and LocalSeq never decreases.
func (s *Store) Update(d *Dialog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.dialogs[d.ID]; ok {
		if existing.Status == StatusStop {
			// P2: once stopped, further events must not be observable.
			return ErrFinished
		}
		if d.LocalSeq < existing.LocalSeq {
			// P3: LocalSeq is monotonically non-decreasing.
			d.LocalSeq = existing.LocalSeq
		}
	}
	s.dialogs[d.ID] = d
	return nil
}

// Remove deletes the dialog with the given id, if present.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dialogs, id)
}

// Len reports the number of dialogs currently stored, mostly useful in
// tests and diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dialogs)
}
