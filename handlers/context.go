// Package handlers implements RPC method dispatch (component K): role
// authorization per spec §4.C, param parsing, routing into the core state
// machine, and the plugin-response-to-core-update wiring that bridges
// component I's translator to the session broadcast layer.
package handlers

import (
	"github.com/hamr-launcher/hamrd/core"
	"github.com/hamr-launcher/hamrd/index"
	"github.com/hamr-launcher/hamrd/logger"
	"github.com/hamr-launcher/hamrd/plugin"
	"github.com/hamr-launcher/hamrd/session"
)

var log = logger.ComponentLogger("handlers")

// Context bundles every collaborator a request handler or plugin-response
// handler needs. One Context is shared by every connection the daemon
// accepts.
type Context struct {
	Core     *core.Core
	Sessions *session.Registry
	Plugins  *plugin.Registry
	Store    *index.Store

	// DaemonVersion is checked against a registering plugin's
	// min_daemon_version, if any.
	DaemonVersion string

	// PluginDirs is rescanned by reload_plugins.
	PluginDirs []string

	// OnShutdown is invoked once the shutdown notification has been
	// authorized and acknowledged; the daemon supplies the actual
	// socket-close/save/terminate sequence (spec §4.K).
	OnShutdown func()
}
