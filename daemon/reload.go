package daemon

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hamr-launcher/hamrd/logger"
)

var reloadLog = logger.ComponentLogger("daemon.reload")

// pluginReloadDebounce coalesces a burst of filesystem events (a plugin
// install typically writes several files) into a single ReloadPlugins call.
const pluginReloadDebounce = 500 * time.Millisecond

// pluginWatcher watches the built-in and user plugin directories and
// triggers Core.ReloadPlugins after changes settle.
type pluginWatcher struct {
	d       *Daemon
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// newPluginWatcher creates a watcher over every directory in dirs. A
// directory that does not exist yet is skipped; plugins installed by
// creating a previously-absent directory require a manual reload_plugins
// call or a daemon restart.
func newPluginWatcher(d *Daemon, dirs []string) (*pluginWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	pw := &pluginWatcher{d: d, watcher: fw}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			reloadLog.Debugw("skipping unwatchable plugin directory", "dir", dir, "error", err)
			continue
		}
	}
	return pw, nil
}

// Start launches the watch loop goroutine.
func (pw *pluginWatcher) Start() {
	go pw.run()
}

func (pw *pluginWatcher) run() {
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			reloadLog.Debugw("plugin directory change detected", "path", event.Name, "op", event.Op.String())
			pw.scheduleReload()

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			reloadLog.Warnw("plugin watcher error", logger.FieldError, err)
		}
	}
}

func (pw *pluginWatcher) scheduleReload() {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.timer != nil {
		pw.timer.Stop()
	}
	pw.timer = time.AfterFunc(pluginReloadDebounce, func() {
		if err := pw.d.core.ReloadPlugins(pw.d.paths.PluginDirs()); err != nil {
			reloadLog.Errorw("plugin reload failed", logger.FieldError, err)
		}
	})
}

// Stop closes the underlying fsnotify watcher.
func (pw *pluginWatcher) Stop() error {
	return pw.watcher.Close()
}
