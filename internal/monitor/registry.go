package monitor

import (
	"context"
	"slices"
	"sync"
)

type registryEntry struct {
	session Session
	cancel  context.CancelFunc
}

// Registry is the table of active sessions. Session ids are unique within it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*registryEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*registryEntry)}
}

// Insert adds s with the cancel func of its loop. It fails when s.ID is active.
func (r *Registry) Insert(s Session, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return &DuplicateSessionError{ID: s.ID}
	}
	s.Screens = slices.Clone(s.Screens)
	r.sessions[s.ID] = &registryEntry{session: s, cancel: cancel}
	return nil
}

// Snapshot returns a copy of the session state.
func (r *Registry) Snapshot(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return e.session, true
}

// Update applies fn to the session under the lock. It reports false, without
// calling fn, when the session is not active.
func (r *Registry) Update(id string, fn func(*Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return false
	}
	fn(&e.session)
	return true
}

// Remove deletes the session and returns its final state and loop cancel func.
func (r *Registry) Remove(id string) (Session, context.CancelFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return Session{}, nil, false
	}
	delete(r.sessions, id)
	return e.session, e.cancel, true
}

// Has reports whether id is active.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// IDs returns the active session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
