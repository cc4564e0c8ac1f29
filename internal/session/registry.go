package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the process-wide map of connected Agents. A *Session handed
// out by Get remains valid after Remove: callers must still tolerate
// ErrTransportClosed from a stale handle rather than a nil pointer.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry returns an empty Registry, ready to use.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

// Insert adds s under s.ID, replacing any prior Session registered at that
// id (which should not happen in practice: AgentIds are freshly generated
// per connection).
func (r *Registry) Insert(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Remove drops the Session registered at id, if s is still the one
// registered there. This guards against a slow-to-unwind old connection
// clobbering a newer reconnect's entry.
func (r *Registry) Remove(id uuid.UUID, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[id] == s {
		delete(r.sessions, id)
	}
}

// Get looks up the Session registered for id.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// First returns an arbitrary connected Session. It exists only to support a
// debug-mode convenience path for exercising the gateway with a single
// Agent attached; when several Agents are connected, which one it returns
// is not defined.
func (r *Registry) First() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		return s, true
	}
	return nil, false
}

// List returns every connected Session. The slice is a snapshot; Sessions
// may disconnect concurrently with the caller iterating it.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of connected Sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes the underlying transport of every connected Session. Used
// during graceful shutdown so a draining process doesn't leave Agent
// sockets dangling past the HTTP server's own shutdown deadline.
func (r *Registry) CloseAll() {
	for _, s := range r.List() {
		s.Close()
	}
}
