package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceDiscoveredAndLookup(t *testing.T) {
	r := NewRegistry()
	r.ReplaceDiscovered([]*Manifest{{ID: "apps", Name: "Applications"}})

	m, ok := r.Manifest("apps")
	require.True(t, ok)
	assert.Equal(t, "Applications", m.Name)

	_, ok = r.Manifest("missing")
	assert.False(t, ok)
}

func TestReplaceDiscoveredDropsStalePlugins(t *testing.T) {
	r := NewRegistry()
	r.ReplaceDiscovered([]*Manifest{{ID: "apps"}, {ID: "files"}})
	r.ReplaceDiscovered([]*Manifest{{ID: "apps"}})

	_, ok := r.Manifest("files")
	assert.False(t, ok)
	assert.Len(t, r.AllManifests(), 1)
}

func TestMarkConnectedAndDisconnected(t *testing.T) {
	r := NewRegistry()
	r.MarkConnected("apps", "session-1")
	assert.True(t, r.IsConnected("apps"))

	sessionID, ok := r.SessionFor("apps")
	require.True(t, ok)
	assert.Equal(t, "session-1", sessionID)

	r.MarkDisconnected("apps")
	assert.False(t, r.IsConnected("apps"))
}

func TestAllConnectedSorted(t *testing.T) {
	r := NewRegistry()
	r.MarkConnected("zeta", "s1")
	r.MarkConnected("alpha", "s2")
	assert.Equal(t, []string{"alpha", "zeta"}, r.AllConnected())
}
