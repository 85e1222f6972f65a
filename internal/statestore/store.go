// Package statestore holds the current workspace snapshot for one client.
package statestore

import (
	"sync"

	"teamsync/api/internal/workspace"
)

// Listener receives snapshots installed after it subscribed, oldest first.
// A listener that falls behind concurrent writers may skip intermediate
// snapshots but never sees an older one after a newer one.
type Listener func(workspace.Snapshot)

// Store owns the current snapshot. Snapshots are replaced wholesale and
// never modified in place, so readers may keep the value returned by Get.
type Store struct {
	mu        sync.RWMutex
	current   workspace.Snapshot
	version   uint64
	listeners map[int]Listener
	nextID    int

	deliverMu sync.Mutex
	delivered uint64
}

func New(initial workspace.Snapshot) *Store {
	return &Store{
		current:   workspace.Normalize(initial),
		listeners: make(map[int]Listener),
	}
}

func (s *Store) Get() workspace.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace installs next and notifies listeners outside the lock.
func (s *Store) Replace(next workspace.Snapshot) {
	s.Update(func(workspace.Snapshot) (workspace.Snapshot, bool) {
		return next, true
	})
}

// Update is the atomic read-modify-write. fn runs under the write lock and
// its result is installed when commit is true; readers wait for fn, so it
// must not call back into the store. Update returns the snapshot that is
// current afterwards.
func (s *Store) Update(fn func(current workspace.Snapshot) (next workspace.Snapshot, commit bool)) (workspace.Snapshot, bool) {
	s.mu.Lock()
	next, commit := fn(s.current)
	if !commit {
		current := s.current
		s.mu.Unlock()
		return current, false
	}
	next = workspace.Normalize(next)
	s.current = next
	s.version++
	version := s.version
	listeners := make([]Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.mu.Unlock()

	s.deliver(version, next, listeners)
	return next, true
}

func (s *Store) deliver(version uint64, next workspace.Snapshot, listeners []Listener) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version
	for _, listener := range listeners {
		listener(next)
	}
}

// Subscribe registers listener and returns the function that removes it.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
