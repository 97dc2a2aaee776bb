package daemon

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePathsUsesXDGDirectories(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_STATE_HOME", "/state")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("XDG_DATA_DIRS", "/usr/local/share:/usr/share")

	p := ResolvePaths()

	assert.Equal(t, "/run/user/1000/hamr.sock", p.SocketPath)
	assert.Equal(t, filepath.Join("/state", "hamr", "index.json"), p.IndexCache)
	assert.Equal(t, filepath.Join("/cfg", "hamr", "config.json"), p.ConfigFile)
	assert.Equal(t, filepath.Join("/usr/local/share", "hamr", "plugins"), p.BuiltinPluginDir)
	assert.Equal(t, filepath.Join("/cfg", "hamr", "plugins"), p.UserPluginDir)
	assert.Equal(t, []string{p.BuiltinPluginDir, p.UserPluginDir}, p.PluginDirs())
}

func TestResolvePathsFallsBackWithoutXDGVars(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("XDG_DATA_DIRS", "")

	p := ResolvePaths()

	assert.Equal(t, fmt.Sprintf("/tmp/hamr-%s.sock", uidString()), p.SocketPath)
	assert.Equal(t, filepath.Join("/home/test", ".config", "hamr", "config.json"), p.ConfigFile)
	assert.Equal(t, filepath.Join("/home/test", ".local", "state", "hamr", "index.json"), p.IndexCache)
	assert.Equal(t, filepath.Join("/usr/share", "hamr", "plugins"), p.BuiltinPluginDir)
}
