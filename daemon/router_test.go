package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamr-launcher/hamrd/config"
	"github.com/hamr-launcher/hamrd/index"
	"github.com/hamr-launcher/hamrd/session"
)

func TestRouteGlobalBroadcastsRankedResults(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		SocketPath:       dir + "/hamr.sock",
		IndexCache:       dir + "/index.json",
		ConfigFile:       dir + "/config.json",
		BuiltinPluginDir: dir + "/builtin",
		UserPluginDir:    dir + "/user",
	}
	cfg := config.Default()
	d := New(paths, cfg)

	d.store.UpdateFull("apps", []index.Item{
		{ID: "firefox", Name: "Firefox"},
		{ID: "files", Name: "File Manager"},
	})

	ui := session.New()
	d.hc.Sessions.Add(ui)
	prev := d.hc.Sessions.RegisterUI(ui.ID, "test-ui")
	require.Empty(t, prev)

	r := &routerImpl{d: d}
	r.RouteGlobal("fire")

	select {
	case msg := <-ui.Outbound():
		assert.Equal(t, "results", msg.Method)
	default:
		t.Fatal("expected a broadcast results notification")
	}
}
