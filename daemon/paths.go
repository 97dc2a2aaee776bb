// Package daemon wires every other component into the long-lived process
// described by spec.md §4: the Unix-socket accept loop, per-connection
// framing and dispatch, the core.Router implementation, plugin process and
// socket-transport supervision, manifest hot reload, and the shutdown
// sequence.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Paths resolves every filesystem location the daemon consults, per the
// environment variables spec.md §5 names (HOME, XDG_CONFIG_HOME,
// XDG_STATE_HOME, XDG_RUNTIME_DIR, XDG_DATA_DIRS).
type Paths struct {
	SocketPath string
	IndexCache string
	ConfigFile string

	// BuiltinPluginDir and UserPluginDir are scanned in that order: a
	// plugin id discovered in BuiltinPluginDir wins over one discovered in
	// UserPluginDir.
	BuiltinPluginDir string
	UserPluginDir    string
}

// ResolvePaths computes Paths from the process environment.
func ResolvePaths() Paths {
	home := os.Getenv("HOME")

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}

	dataDir := firstDataDir(os.Getenv("XDG_DATA_DIRS"))

	return Paths{
		SocketPath:       resolveSocketPath(),
		IndexCache:       filepath.Join(stateHome, "hamr", "index.json"),
		ConfigFile:       filepath.Join(configHome, "hamr", "config.json"),
		BuiltinPluginDir: filepath.Join(dataDir, "hamr", "plugins"),
		UserPluginDir:    filepath.Join(configHome, "hamr", "plugins"),
	}
}

// PluginDirs returns the two directories Discover scans, built-in first.
func (p Paths) PluginDirs() []string {
	return []string{p.BuiltinPluginDir, p.UserPluginDir}
}

// resolveSocketPath implements spec.md §5's "$XDG_RUNTIME_DIR/hamr.sock
// (fallback /tmp/hamr-$UID.sock)".
func resolveSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "hamr.sock")
	}
	return fmt.Sprintf("/tmp/hamr-%d.sock", os.Getuid())
}

// firstDataDir takes the first entry of a colon-separated XDG_DATA_DIRS,
// falling back to the XDG default when unset.
func firstDataDir(xdgDataDirs string) string {
	if xdgDataDirs == "" {
		return "/usr/share"
	}
	parts := strings.Split(xdgDataDirs, ":")
	if parts[0] == "" {
		return "/usr/share"
	}
	return parts[0]
}

// uidString is used by tests that need to assert the fallback socket path
// without depending on the live process uid directly.
func uidString() string {
	return strconv.Itoa(os.Getuid())
}
