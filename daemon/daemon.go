package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/hamr-launcher/hamrd/config"
	"github.com/hamr-launcher/hamrd/core"
	hamrerrors "github.com/hamr-launcher/hamrd/errors"
	"github.com/hamr-launcher/hamrd/handlers"
	"github.com/hamr-launcher/hamrd/index"
	"github.com/hamr-launcher/hamrd/logger"
	"github.com/hamr-launcher/hamrd/persist"
	"github.com/hamr-launcher/hamrd/plugin"
	"github.com/hamr-launcher/hamrd/session"
	"github.com/hamr-launcher/hamrd/spawner"
	"github.com/hamr-launcher/hamrd/version"
)

var daemonLog = logger.ComponentLogger("daemon")

// Daemon wires every component into the long-lived process spec.md §4
// describes: the accept loop, core state machine, plugin supervision,
// manifest hot reload, and persistence.
type Daemon struct {
	paths Paths
	cfg   config.Config

	sessions *session.Registry
	plugins  *plugin.Registry
	spawn    *spawner.Spawner
	store    *index.Store
	core     *core.Core
	hc       *handlers.Context

	scheduler *persist.Scheduler
	watcher   *pluginWatcher

	ln net.Listener

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New assembles a Daemon from resolved paths and loaded configuration. No
// filesystem or network side effects happen until Run is called.
func New(paths Paths, cfg config.Config) *Daemon {
	sessions := session.NewRegistry()
	plugins := plugin.NewRegistry()
	sp := spawner.New()
	store := index.Load(paths.IndexCache)

	c := core.New(sessions, plugins, sp, store)
	c.PluginWorkingDir = func(pluginID string) string {
		if m, ok := plugins.Manifest(pluginID); ok && m.Dir != "" {
			return m.Dir
		}
		return ""
	}

	d := &Daemon{
		paths:      paths,
		cfg:        cfg,
		sessions:   sessions,
		plugins:    plugins,
		spawn:      sp,
		store:      store,
		core:       c,
		scheduler:  persist.New(store, paths.IndexCache),
		shutdownCh: make(chan struct{}),
	}

	c.Router = &routerImpl{d: d}

	hc := &handlers.Context{
		Core:          c,
		Sessions:      sessions,
		Plugins:       plugins,
		Store:         store,
		DaemonVersion: version.Get().Version,
		PluginDirs:    paths.PluginDirs(),
		OnShutdown:    d.initiateShutdown,
	}
	d.hc = hc

	sp.OnSpawn = d.onPluginSpawned
	sp.OnExit = d.onPluginExited

	return d
}

// onPluginSpawned attaches a freshly spawned stdio plugin's pipes to the
// same connection-handling loop an accepted socket connection uses. Socket
// kind plugins do not go through SpawnInDir's pipe wiring at all; they are
// connected out-of-band by connectSocketPlugin once their process is up.
func (d *Daemon) onPluginSpawned(pluginID string, m *plugin.Manifest) {
	if m.Kind == plugin.KindSocket {
		go d.connectSocketPlugin(m)
		return
	}
	stdout, stdin, ok := d.spawn.StdioPipes(pluginID)
	if !ok {
		return
	}
	go d.handleConn(pipeConn{ReadCloser: stdout, WriteCloser: stdin})
}

// onPluginExited clears the plugin's connected-session bookkeeping; the
// caller (core's ensureSpawned/ReloadPlugins paths) decides whether to
// respawn a background plugin.
func (d *Daemon) onPluginExited(pluginID string, err error) {
	d.plugins.MarkDisconnected(pluginID)
	if err != nil {
		daemonLog.Warnw("plugin process exited with error", logger.FieldPlugin, pluginID, logger.FieldError, err)
	}
}

// Run binds the Unix socket, performs initial plugin discovery, spawns
// background plugins, starts the persistence scheduler and manifest
// watcher, and runs the accept loop until ctx is cancelled or Shutdown is
// called. It returns nil on a clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(d.paths.IndexCache), 0o755); err != nil {
		return hamrerrors.Wrapf(err, "creating state directory")
	}

	ln, err := bindSocket(d.paths.SocketPath)
	if err != nil {
		return err
	}
	d.ln = ln
	daemonLog.Infow("listening", logger.FieldSocketPath, d.paths.SocketPath)

	d.scheduler.Start()

	manifests, err := plugin.Discover(d.paths.PluginDirs())
	if err != nil {
		daemonLog.Warnw("initial plugin discovery failed", logger.FieldError, err)
	}
	d.plugins.ReplaceDiscovered(manifests)
	d.spawnBackgroundPlugins(manifests)

	watcher, err := newPluginWatcher(d, d.paths.PluginDirs())
	if err != nil {
		daemonLog.Warnw("plugin watcher unavailable, hot reload disabled", logger.FieldError, err)
	} else {
		d.watcher = watcher
		watcher.Start()
	}

	go func() {
		select {
		case <-ctx.Done():
			d.initiateShutdown()
		case <-d.shutdownCh:
		}
	}()

	d.acceptLoop()
	return nil
}

// spawnBackgroundPlugins starts every discovered manifest whose daemon
// policy marks it background-managed, per spec.md's plugin lifecycle.
func (d *Daemon) spawnBackgroundPlugins(manifests []*plugin.Manifest) {
	for _, m := range manifests {
		if !m.Daemon.Background {
			continue
		}
		workingDir := m.Dir
		if m.Kind == plugin.KindSocket {
			// Socket plugins still need their process started if they
			// declare a spawn_command; connectSocketPlugin is triggered via
			// OnSpawn once the process is up.
			if m.SpawnCommand == "" {
				continue
			}
		}
		if err := d.spawn.SpawnInDir(m, workingDir); err != nil {
			daemonLog.Warnw("failed to spawn background plugin", logger.FieldPlugin, m.ID, logger.FieldError, err)
		}
	}
}

func (d *Daemon) acceptLoop() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			select {
			case <-d.shutdownCh:
				return
			default:
				daemonLog.Warnw("accept failed", logger.FieldError, err)
				return
			}
		}
		go d.handleConn(conn)
	}
}

// initiateShutdown runs the shutdown sequence exactly once: stop accepting
// connections, stop the manifest watcher, force a final index save,
// terminate every spawned plugin process, and remove the socket file.
func (d *Daemon) initiateShutdown() {
	d.shutdownOnce.Do(func() {
		daemonLog.Info("shutting down")
		close(d.shutdownCh)

		if d.ln != nil {
			d.ln.Close()
		}
		if d.watcher != nil {
			if err := d.watcher.Stop(); err != nil {
				daemonLog.Warnw("plugin watcher stop failed", logger.FieldError, err)
			}
		}
		if err := d.scheduler.Shutdown(); err != nil {
			daemonLog.Warnw("final index save failed", logger.FieldError, err)
		}

		for _, m := range d.plugins.AllManifests() {
			if err := d.spawn.StopPlugin(m.ID); err != nil {
				daemonLog.Warnw("plugin stop failed", logger.FieldPlugin, m.ID, logger.FieldError, err)
			}
		}

		if err := os.Remove(d.paths.SocketPath); err != nil && !os.IsNotExist(err) {
			daemonLog.Warnw("socket removal failed", logger.FieldError, err)
		}
	})
}
