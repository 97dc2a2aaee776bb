package plugin

import (
	"sort"
	"sync"
)

// Connected is a live connected plugin session: a socket/stdio plugin that
// has completed registration, identified by its session id so the daemon
// can route outbound notifications to it.
type Connected struct {
	SessionID string
	PluginID  string
}

// Registry holds the two tables component D describes: every discovered
// manifest (read-mostly, rebuilt on reload) and every currently connected
// plugin session (mutated on register/unregister). Mutex-guarded because
// the accept loop and event loop both touch the connected table.
type Registry struct {
	mu         sync.RWMutex
	discovered map[string]*Manifest
	connected  map[string]*Connected // plugin id -> connected record
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		discovered: make(map[string]*Manifest),
		connected:  make(map[string]*Connected),
	}
}

// ReplaceDiscovered atomically swaps the discovered-manifest table, used on
// initial scan and on reload_plugins.
func (r *Registry) ReplaceDiscovered(manifests []*Manifest) {
	next := make(map[string]*Manifest, len(manifests))
	for _, m := range manifests {
		next[m.ID] = m
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovered = next
}

// Manifest looks up a discovered plugin's manifest by id.
func (r *Registry) Manifest(id string) (*Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.discovered[id]
	return m, ok
}

// AllManifests returns every discovered manifest sorted by id.
func (r *Registry) AllManifests() []*Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.discovered))
	for id := range r.discovered {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Manifest, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.discovered[id])
	}
	return out
}

// MarkConnected records a plugin session as connected.
func (r *Registry) MarkConnected(pluginID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected[pluginID] = &Connected{SessionID: sessionID, PluginID: pluginID}
}

// MarkDisconnected removes a plugin's connected record, if present.
func (r *Registry) MarkDisconnected(pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connected, pluginID)
}

// IsConnected reports whether a plugin id currently has a live session.
func (r *Registry) IsConnected(pluginID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connected[pluginID]
	return ok
}

// SessionFor returns the session id backing a connected plugin, if any.
func (r *Registry) SessionFor(pluginID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connected[pluginID]
	if !ok {
		return "", false
	}
	return c.SessionID, true
}

// Connected returns the connected record for a plugin id, if any.
func (r *Registry) Connected(pluginID string) (*Connected, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connected[pluginID]
	return c, ok
}

// AllConnected returns every connected plugin id, sorted.
func (r *Registry) AllConnected() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.connected))
	for id := range r.connected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
