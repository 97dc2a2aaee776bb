package session

import (
	"sort"
	"sync"

	"github.com/hamr-launcher/hamrd/rpc"
)

// Registry maintains every connected session and the single active-UI
// pointer. Mutated only by the daemon's event loop per the single-owner
// concurrency model; the mutex exists because the accept loop registers new
// Pending sessions concurrently with the event loop reading the map.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	activeUI string // session id, "" if none
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a newly accepted (Pending) session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops a session from the registry. If it held the active-UI slot,
// the slot is cleared.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	if r.activeUI == id {
		r.activeUI = ""
	}
}

// RegisterUI promotes a Pending session to the active UI. Any previous
// active UI is demoted (kept registered, but no longer receives broadcasts).
// Returns the previous active UI id, if any.
func (r *Registry) RegisterUI(id, name string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ""
	}
	s.Role = RoleUI
	s.UIName = name
	previous = r.activeUI
	r.activeUI = id
	return previous
}

// RegisterControl promotes a Pending session to Control.
func (r *Registry) RegisterControl(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Role = RoleControl
	}
}

// RegisterPlugin promotes a Pending session to a connected Plugin.
func (r *Registry) RegisterPlugin(id, pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Role = RolePlugin
		s.PluginID = pluginID
	}
}

// ActiveUI returns the session id of the active UI, or "" if none.
func (r *Registry) ActiveUI() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeUI
}

// IsActiveUI reports whether the given session id is the active UI.
func (r *Registry) IsActiveUI(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeUI != "" && r.activeUI == id
}

// Broadcast sends a message to the active UI only. Returns false if there is
// no active UI, or if the active UI's outbound queue is full — in which case
// the caller should drop that session per the back-pressure policy.
func (r *Registry) Broadcast(msg *rpc.Message) bool {
	r.mu.RLock()
	id := r.activeUI
	r.mu.RUnlock()
	if id == "" {
		return false
	}
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	return s.Send(msg)
}

// List returns every session id in sorted order, for deterministic
// iteration (diagnostics, tests).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
