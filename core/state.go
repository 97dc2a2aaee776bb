// Package core implements the daemon's single-owner state machine
// (component J): the in-memory launcher state plus the event handlers that
// mutate it and forward work to plugins. Every exported method is meant to
// be called from one goroutine (the daemon's event loop) except where noted;
// debounce timers fire on their own goroutine and hand control back through
// the Router.
package core

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/hamr-launcher/hamrd/convert"
	"github.com/hamr-launcher/hamrd/index"
	"github.com/hamr-launcher/hamrd/logger"
	"github.com/hamr-launcher/hamrd/plugin"
	"github.com/hamr-launcher/hamrd/rpc"
	"github.com/hamr-launcher/hamrd/session"
	"github.com/hamr-launcher/hamrd/spawner"
)

var log = logger.ComponentLogger("core")

// DefaultQueryDebounce is the per-plugin debounce window for QueryChanged,
// overridable per Core instance.
const DefaultQueryDebounce = 150 * time.Millisecond

// registerSettleDelay is the pause between a plugin's register call and the
// daemon sending it the synthetic "initial" request, giving the plugin time
// to finish its own setup.
const registerSettleDelay = 10 * time.Millisecond

// InputMode mirrors a plugin's declared query-handling mode.
type InputMode int

const (
	InputRealtime InputMode = iota
	InputSubmit
)

// View tracks which UI surface is currently on top, so Cancel knows what to
// collapse back to results.
type View int

const (
	ViewResults View = iota
	ViewForm
	ViewImageBrowser
	ViewGridBrowser
)

// ActivePlugin is the launcher's currently focused plugin, if any.
type ActivePlugin struct {
	ID      string
	Context string
}

// State is the full snapshot described in spec.md's "Core State" section.
type State struct {
	IsOpen          bool
	Query           string
	ActivePlugin    *ActivePlugin
	InputMode       InputMode
	Busy            bool
	NavigationDepth uint32
	View            View
	Ambient         map[string][]convert.AmbientItem
	PluginStatuses  map[string]*convert.PluginStatus
}

func newState() State {
	return State{
		Ambient:        make(map[string][]convert.AmbientItem),
		PluginStatuses: make(map[string]*convert.PluginStatus),
	}
}

// Router performs the actual work once a query is ready to route: reaching
// the plugin transport, or running the global search engine. Implemented by
// the daemon, which owns the session/plugin connections and the index
// store; Core itself only owns debouncing and sequencing.
type Router interface {
	RouteToPlugin(pluginID, query string)
	RouteGlobal(query string)
}

// Core is the daemon's state machine. Construct with New and wire Router
// before processing any events.
type Core struct {
	mu    sync.Mutex
	state State

	Sessions *session.Registry
	Plugins  *plugin.Registry
	Spawner  *spawner.Spawner
	Store    *index.Store
	Router   Router

	// PluginWorkingDir resolves the directory a plugin should be spawned in.
	// Nil means spawn with the daemon's own working directory.
	PluginWorkingDir func(pluginID string) string

	QueryDebounce time.Duration

	debounce   map[string]*time.Timer
	generation map[string]uint64
}

// New builds a Core over the given collaborators. Router must be set before
// QueryChanged/QuerySubmitted fire.
func New(sessions *session.Registry, plugins *plugin.Registry, sp *spawner.Spawner, store *index.Store) *Core {
	return &Core{
		state:         newState(),
		Sessions:      sessions,
		Plugins:       plugins,
		Spawner:       sp,
		Store:         store,
		QueryDebounce: DefaultQueryDebounce,
		debounce:      make(map[string]*time.Timer),
		generation:    make(map[string]uint64),
	}
}

// State returns a snapshot of the current state. Ambient is returned by
// reference to the live map; callers must not mutate it.
func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LauncherOpened implements the LauncherOpened event.
func (c *Core) LauncherOpened() {
	c.mu.Lock()
	c.state.IsOpen = true
	c.mu.Unlock()
}

// LauncherClosed implements the LauncherClosed event: the active on-demand
// plugin (if any) is stopped.
func (c *Core) LauncherClosed() {
	c.mu.Lock()
	c.state.IsOpen = false
	active := c.state.ActivePlugin
	key := c.debounceKeyLocked()
	c.cancelDebounceLocked(key)
	c.mu.Unlock()

	if active != nil {
		c.maybeStopOnDemand(active.ID)
	}
}

// OpenPlugin implements the OpenPlugin{id} event: toggles the plugin closed
// if it is already the active one; otherwise activates it, spawning it on
// demand if it is not already connected, resets navigation depth, and sends
// it an "initial" request.
func (c *Core) OpenPlugin(id string) {
	c.mu.Lock()
	if c.state.IsOpen && c.state.ActivePlugin != nil && c.state.ActivePlugin.ID == id {
		c.state.ActivePlugin = nil
		c.mu.Unlock()
		c.maybeStopOnDemand(id)
		return
	}

	previous := c.state.ActivePlugin
	c.state.ActivePlugin = &ActivePlugin{ID: id}
	c.state.NavigationDepth = 0
	c.state.View = ViewResults
	c.mu.Unlock()

	if previous != nil && previous.ID != id {
		c.maybeStopOnDemand(previous.ID)
	}

	c.ensureSpawned(id)
	c.sendToPlugin(id, "initial", nil)
}

// ClosePlugin implements the ClosePlugin event.
func (c *Core) ClosePlugin() {
	c.mu.Lock()
	previous := c.state.ActivePlugin
	c.state.ActivePlugin = nil
	c.mu.Unlock()

	if previous != nil {
		c.maybeStopOnDemand(previous.ID)
	}
}

// NotifyPluginRegistered implements the session registry's rule (spec
// §4.C): when a plugin registers and it matches the currently active
// plugin, the daemon sends it a synthetic "initial" request after a short
// settle delay.
func (c *Core) NotifyPluginRegistered(pluginID string) {
	c.mu.Lock()
	active := c.state.ActivePlugin
	c.mu.Unlock()
	if active == nil || active.ID != pluginID {
		return
	}
	time.AfterFunc(registerSettleDelay, func() {
		c.sendToPlugin(pluginID, "initial", nil)
	})
}

// QueryChanged implements QueryChanged{q} for input_mode == Realtime: the
// query is debounced, and the most recent query within the window wins. A
// cleared query cancels any pending timer without routing.
func (c *Core) QueryChanged(q string) {
	c.mu.Lock()
	if c.state.InputMode != InputRealtime {
		c.mu.Unlock()
		return
	}
	c.state.Query = q
	key := c.debounceKeyLocked()
	c.cancelDebounceLocked(key)

	if q == "" {
		c.mu.Unlock()
		return
	}

	c.generation[key]++
	gen := c.generation[key]
	delay := c.QueryDebounce
	c.mu.Unlock()

	timer := time.AfterFunc(delay, func() { c.fireDebounce(key, q, gen) })

	c.mu.Lock()
	c.debounce[key] = timer
	c.mu.Unlock()
}

func (c *Core) fireDebounce(key, q string, gen uint64) {
	c.mu.Lock()
	delete(c.debounce, key)
	current := c.generation[key] == gen
	active := c.state.ActivePlugin
	c.mu.Unlock()

	if !current || c.Router == nil {
		return
	}
	if active != nil && active.ID == key {
		c.Router.RouteToPlugin(active.ID, q)
		return
	}
	c.Router.RouteGlobal(q)
}

// QuerySubmitted implements QuerySubmitted{q}: always routes immediately,
// superseding any pending debounce.
func (c *Core) QuerySubmitted(q string) {
	c.mu.Lock()
	c.state.Query = q
	key := c.debounceKeyLocked()
	c.cancelDebounceLocked(key)
	c.generation[key]++
	active := c.state.ActivePlugin
	c.mu.Unlock()

	if c.Router == nil {
		return
	}
	if active != nil {
		c.Router.RouteToPlugin(active.ID, q)
		return
	}
	c.Router.RouteGlobal(q)
}

// ItemSelected implements ItemSelected{plugin_id, id, action?}: forwards the
// selection to the plugin. Recording the execution is the caller's
// responsibility once the plugin's response confirms success — see
// RecordExecution.
func (c *Core) ItemSelected(pluginID, itemID string, action *string) {
	c.forwardItemSelected(pluginID, itemID, action, "")
}

// RecordExecution records a successful execution against the index store,
// resolving the recording mode from the plugin's manifest.
func (c *Core) RecordExecution(pluginID, itemID string, ctx index.ExecutionContext, fallback *index.Item) {
	mode := index.ModeItem
	if m, ok := c.Plugins.Manifest(pluginID); ok {
		switch m.Frecency {
		case plugin.FrecencyNone:
			mode = index.ModeNone
		case plugin.FrecencyPlugin:
			mode = index.ModePlugin
		default:
			mode = index.ModeItem
		}
	}
	c.Store.RecordExecution(pluginID, itemID, ctx, mode, fallback)
}

// Back implements the Back event: navigation depth decrements (saturating
// at zero) and a synthetic "__back__" selection is forwarded to the active
// plugin.
func (c *Core) Back() {
	c.mu.Lock()
	if c.state.NavigationDepth > 0 {
		c.state.NavigationDepth--
	}
	active := c.state.ActivePlugin
	c.mu.Unlock()

	if active != nil {
		c.forwardItemSelected(active.ID, "__back__", nil, "")
	}
}

// Cancel implements the Cancel event: closes any form/browser view and
// returns to results.
func (c *Core) Cancel() {
	c.mu.Lock()
	c.state.View = ViewResults
	c.mu.Unlock()
}

// SetView records that a form/browser update changed which surface is on
// top, so a later Cancel knows what to collapse.
func (c *Core) SetView(v View) {
	c.mu.Lock()
	c.state.View = v
	c.mu.Unlock()
}

// AmbientAction implements AmbientAction{plugin_id, id, action?}: forwarded
// to the plugin with source "ambient".
func (c *Core) AmbientAction(pluginID, itemID string, action *string) {
	c.forwardItemSelected(pluginID, itemID, action, "ambient")
}

// DismissAmbient implements DismissAmbient{plugin_id, id}: the item is
// removed from local ambient state immediately, then "__dismiss__" is
// forwarded to the plugin.
func (c *Core) DismissAmbient(pluginID, itemID string) {
	c.mu.Lock()
	items := c.state.Ambient[pluginID]
	kept := make([]convert.AmbientItem, 0, len(items))
	for _, it := range items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	c.state.Ambient[pluginID] = kept
	c.mu.Unlock()

	c.forwardItemSelected(pluginID, "__dismiss__", &itemID, "")
}

// SetBusy records the daemon-wide busy flag, toggled by a plugin response's
// implicit Busy{false} (or, before a forward, Busy{true}).
func (c *Core) SetBusy(busy bool) {
	c.mu.Lock()
	c.state.Busy = busy
	c.mu.Unlock()
}

// Activate installs pluginID as the active plugin without the spawn/toggle
// semantics OpenPlugin applies — used when an already-connected plugin asks
// to be brought to the front via its own response's `activate` flag.
func (c *Core) Activate(pluginID string) {
	c.mu.Lock()
	c.state.ActivePlugin = &ActivePlugin{ID: pluginID}
	c.state.NavigationDepth = 0
	c.mu.Unlock()
}

// SetNavigationDepth installs a navigation depth reported directly by a
// plugin response's NavigationDepthChanged update.
func (c *Core) SetNavigationDepth(depth uint32) {
	c.mu.Lock()
	c.state.NavigationDepth = depth
	c.mu.Unlock()
}

// ForwardQuery sends a query to a plugin, used by a Router implementation to
// route a debounced or submitted query once the active plugin is known.
func (c *Core) ForwardQuery(pluginID, query string) {
	c.sendToPlugin(pluginID, "query_changed", struct {
		Query string `json:"query"`
	}{Query: query})
}

// FormSubmitted forwards a form's submitted values to its owning plugin as a
// synthetic "__form_submit__" selection, the same sentinel-item convention
// Back/DismissAmbient/PluginActionTriggered use.
func (c *Core) FormSubmitted(pluginID string, values map[string]interface{}) {
	encoded, err := jsonMarshalCompact(values)
	if err != nil {
		log.Errorw("failed to encode form values", "plugin", pluginID, "error", err)
		return
	}
	c.forwardItemSelected(pluginID, "__form_submit__", &encoded, "")
}

// ApplyAmbientUpdate installs a plugin's replacement ambient set, as
// produced by convert.ToUpdates's AmbientUpdate. Called by the daemon after
// translating a plugin response.
func (c *Core) ApplyAmbientUpdate(pluginID string, items []convert.AmbientItem) {
	c.mu.Lock()
	c.state.Ambient[pluginID] = items
	c.mu.Unlock()
}

// CachePluginStatus records a plugin's latest badges/chips/description/FAB
// state, produced by convert.ToUpdates's PluginStatusUpdate. Replayed to
// newly registered UIs by ForwardCachedPluginState.
func (c *Core) CachePluginStatus(pluginID string, status *convert.PluginStatus) {
	c.mu.Lock()
	c.state.PluginStatuses[pluginID] = status
	c.mu.Unlock()
}

// ForwardCachedPluginState replays every plugin's cached status and ambient
// set to a newly registered UI session, so a late-joining UI starts from the
// same state an already-connected one sees.
func (c *Core) ForwardCachedPluginState(sess *session.Session) {
	c.mu.Lock()
	statuses := make(map[string]*convert.PluginStatus, len(c.state.PluginStatuses))
	for id, s := range c.state.PluginStatuses {
		statuses[id] = s
	}
	ambient := make(map[string][]convert.AmbientItem, len(c.state.Ambient))
	for id, items := range c.state.Ambient {
		ambient[id] = items
	}
	c.mu.Unlock()

	for pluginID, status := range statuses {
		update := convert.CoreUpdate{Kind: convert.UpdatePluginStatusUpdate, PluginID: pluginID, Status: status}
		msg, err := rpc.NewNotification(string(update.Kind), update)
		if err != nil {
			log.Errorw("failed to encode cached plugin status", "plugin", pluginID, "error", err)
			continue
		}
		if !sess.Send(msg) {
			log.Warnw("failed to forward cached plugin status to new UI", "plugin", pluginID, "session", sess.ID)
		}
	}

	for pluginID, items := range ambient {
		if len(items) == 0 {
			continue
		}
		update := convert.CoreUpdate{Kind: convert.UpdateAmbientUpdate, PluginID: pluginID, AmbientItems: items}
		msg, err := rpc.NewNotification(string(update.Kind), update)
		if err != nil {
			log.Errorw("failed to encode cached ambient state", "plugin", pluginID, "error", err)
			continue
		}
		if !sess.Send(msg) {
			log.Warnw("failed to forward cached ambient state to new UI", "plugin", pluginID, "session", sess.ID)
		}
	}
}

// PluginActionTriggered implements PluginActionTriggered{action_id}:
// forwarded to the active plugin as a synthetic "__plugin__" item.
func (c *Core) PluginActionTriggered(actionID string) {
	c.mu.Lock()
	active := c.state.ActivePlugin
	c.mu.Unlock()
	if active == nil {
		return
	}
	c.forwardItemSelected(active.ID, "__plugin__", &actionID, "")
}

// ReloadPlugins implements ReloadPlugins: rescans the given directories,
// stops on-demand plugins, and restarts background plugins whose manifest
// changed since the last scan. Newly-discovered background plugins are
// spawned.
func (c *Core) ReloadPlugins(dirs []string) error {
	discovered, err := plugin.Discover(dirs)
	if err != nil {
		return err
	}

	previous := c.Plugins.AllManifests()
	prevByID := make(map[string]*plugin.Manifest, len(previous))
	for _, m := range previous {
		prevByID[m.ID] = m
	}

	c.Plugins.ReplaceDiscovered(discovered)

	for _, id := range c.Plugins.AllConnected() {
		m, ok := c.Plugins.Manifest(id)
		if !ok {
			continue
		}
		if !m.Daemon.Background {
			if err := c.Spawner.StopPlugin(id); err != nil {
				log.Warnw("failed to stop on-demand plugin during reload", "plugin", id, "error", err)
			}
			continue
		}
		if prev, existed := prevByID[id]; existed && manifestChanged(prev, m) {
			if err := c.Spawner.StopPlugin(id); err != nil {
				log.Warnw("failed to stop background plugin for restart", "plugin", id, "error", err)
				continue
			}
			c.ensureSpawned(id)
		}
	}

	for _, m := range discovered {
		if m.Daemon.Background && !c.Plugins.IsConnected(m.ID) {
			c.ensureSpawned(m.ID)
		}
	}
	return nil
}

func manifestChanged(prev, next *plugin.Manifest) bool {
	return prev.SpawnCommand != next.SpawnCommand ||
		prev.Kind != next.Kind ||
		prev.Daemon.Background != next.Daemon.Background
}

// ensureSpawned spawns a plugin that declares a spawn_command and is not
// already connected or spawned. A no-op for socket plugins with no
// spawn_command (expected to be launched externally).
func (c *Core) ensureSpawned(pluginID string) {
	if c.Plugins.IsConnected(pluginID) || c.Spawner.IsSpawned(pluginID) {
		return
	}
	m, ok := c.Plugins.Manifest(pluginID)
	if !ok || m.SpawnCommand == "" {
		return
	}
	dir := ""
	if c.PluginWorkingDir != nil {
		dir = c.PluginWorkingDir(pluginID)
	}
	if err := c.Spawner.SpawnInDir(m, dir); err != nil {
		log.Errorw("failed to spawn plugin", "plugin", pluginID, "error", err)
	}
}

// maybeStopOnDemand stops a plugin's spawned process unless its manifest
// declares it a background plugin (which persists across activation
// changes).
func (c *Core) maybeStopOnDemand(pluginID string) {
	if m, ok := c.Plugins.Manifest(pluginID); ok && m.Daemon.Background {
		return
	}
	if err := c.Spawner.StopPlugin(pluginID); err != nil {
		log.Warnw("failed to stop on-demand plugin", "plugin", pluginID, "error", err)
	}
}

type itemSelectedParams struct {
	ID     string  `json:"id"`
	Action *string `json:"action,omitempty"`
	Source string  `json:"source,omitempty"`
}

func (c *Core) forwardItemSelected(pluginID, itemID string, action *string, source string) {
	c.sendToPlugin(pluginID, "item_selected", itemSelectedParams{ID: itemID, Action: action, Source: source})
}

func (c *Core) sendToPlugin(pluginID, method string, params interface{}) bool {
	sessionID, ok := c.Plugins.SessionFor(pluginID)
	if !ok {
		log.Warnw("cannot forward to plugin, not connected", "plugin", pluginID, "method", method)
		return false
	}
	sess, ok := c.Sessions.Get(sessionID)
	if !ok {
		return false
	}
	msg, err := rpc.NewNotification(method, params)
	if err != nil {
		log.Errorw("failed to encode plugin notification", "plugin", pluginID, "error", err)
		return false
	}
	return sess.Send(msg)
}

// debounceKeyLocked returns the debounce bucket for the current state: the
// active plugin id, or "" for the global search route. Must be called with
// mu held.
func (c *Core) debounceKeyLocked() string {
	if c.state.ActivePlugin != nil {
		return c.state.ActivePlugin.ID
	}
	return ""
}

// cancelDebounceLocked stops and drops any pending timer for key. Must be
// called with mu held.
func (c *Core) cancelDebounceLocked(key string) {
	if t, ok := c.debounce[key]; ok {
		t.Stop()
		delete(c.debounce, key)
	}
}

func jsonMarshalCompact(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
