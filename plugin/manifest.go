// Package plugin discovers plugin manifests, tracks connected plugin
// sessions, and exposes lookup operations the daemon's event loop and
// handlers consult before forwarding work to a plugin (component D).
package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	hamrerrors "github.com/hamr-launcher/hamrd/errors"
)

// Kind selects a plugin's transport.
type Kind string

const (
	KindStdio  Kind = "stdio"
	KindSocket Kind = "socket"
)

// FrecencyMode mirrors index.RecordMode at the manifest-declaration level.
type FrecencyMode string

const (
	FrecencyNone   FrecencyMode = "none"
	FrecencyItem   FrecencyMode = "item"
	FrecencyPlugin FrecencyMode = "plugin"
)

// Manifest is a plugin directory's declared identity and launch policy.
type Manifest struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Icon        string       `json:"icon,omitempty"`
	Prefix      string       `json:"prefix,omitempty"`
	Priority    int          `json:"priority,omitempty"`
	Kind        Kind         `json:"kind,omitempty"`
	SpawnCommand string      `json:"spawn_command,omitempty"`
	// SocketAddress is the WebSocket endpoint a Kind socket plugin exposes
	// once spawned (e.g. "ws://127.0.0.1:9231/ws"); the daemon dials out to
	// it rather than waiting for an inbound connection.
	SocketAddress string `json:"socket_address,omitempty"`
	MinDaemonVersion string  `json:"min_daemon_version,omitempty"`
	Daemon      DaemonPolicy `json:"daemon,omitempty"`
	Frecency    FrecencyMode `json:"frecency,omitempty"`

	// Dir is the directory the manifest was discovered in, not part of the
	// JSON payload.
	Dir string `json:"-"`
}

// DaemonPolicy is the manifest's nested daemon-lifecycle block.
type DaemonPolicy struct {
	Background bool `json:"background"`
}

const manifestFileName = "manifest.json"

// normalize fills in defaults and validates required fields.
func (m *Manifest) normalize() error {
	if m.ID == "" || m.Name == "" {
		return hamrerrors.Newf("plugin manifest in %s missing required id/name", m.Dir)
	}
	if m.Kind == "" {
		m.Kind = KindStdio
	}
	if m.Frecency == "" {
		m.Frecency = FrecencyItem
	}
	return nil
}

// CheckDaemonVersion validates the manifest's min_daemon_version constraint,
// if any, against the running daemon version.
func (m *Manifest) CheckDaemonVersion(daemonVersion string) error {
	if m.MinDaemonVersion == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(">= " + m.MinDaemonVersion)
	if err != nil {
		return hamrerrors.Wrapf(err, "plugin %s: invalid min_daemon_version %q", m.ID, m.MinDaemonVersion)
	}
	v, err := semver.NewVersion(daemonVersion)
	if err != nil {
		// Dev builds often carry a non-semver version string; skip the check.
		return nil
	}
	if !constraint.Check(v) {
		return hamrerrors.Newf("plugin %s requires daemon >= %s, running %s", m.ID, m.MinDaemonVersion, daemonVersion)
	}
	return nil
}

// DiscoverDir scans a single plugin directory (one subdirectory per plugin,
// each containing manifest.json) and returns every manifest that parses and
// normalizes successfully. Parse failures are skipped, not fatal.
func DiscoverDir(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, hamrerrors.Wrapf(err, "reading plugin directory %s", dir)
	}

	var out []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginDir := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(filepath.Join(pluginDir, manifestFileName))
		if err != nil {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		m.Dir = pluginDir
		if err := m.normalize(); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out, nil
}

// Discover scans every directory in dirs, in order; a plugin id discovered
// in an earlier directory wins over one discovered in a later directory
// (built-in dir takes precedence over user config dir, or vice versa,
// depending on the order the caller passes).
func Discover(dirs []string) ([]*Manifest, error) {
	seen := make(map[string]bool)
	var out []*Manifest
	for _, dir := range dirs {
		found, err := DiscoverDir(dir)
		if err != nil {
			return nil, err
		}
		for _, m := range found {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	return out, nil
}
