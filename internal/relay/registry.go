package relay

import (
	"sync"

	"github.com/samber/lo"
)

// Registry is a concurrency-safe collection of active sessions. A session is
// present iff its state is Active: Add flips Connecting sessions to Active as
// it admits them, and teardown moves them to Closing before Remove runs.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry. Multiple independent registries can
// coexist in one process; nothing here is global.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add admits a session that completed its handshake. It only accepts sessions
// in Connecting state and transitions them to Active; anything else is
// rejected so a partially constructed or dying session is never visible.
func (r *Registry) Add(s *Session) bool {
	if s == nil || !s.transitionState(StateConnecting, StateActive) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.id]; exists {
		s.forceState(StateClosing)
		return false
	}
	r.sessions[s.id] = s
	return true
}

// Remove deletes the session with the given id and returns it. Removing an
// absent id is a no-op returning nil, which makes double-removal races
// harmless.
func (r *Registry) Remove(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	return s
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

// Snapshot returns a point-in-time copy of all active sessions. Sessions
// removed after the snapshot was taken may still appear in it; fan-out to
// them fails harmlessly.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.sessions)
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Names returns the display names of all active sessions. Duplicates are
// preserved.
func (r *Registry) Names() []string {
	return lo.Map(r.Snapshot(), func(s *Session, _ int) string {
		return s.DisplayName()
	})
}
