package handlers

import (
	"encoding/json"

	"github.com/hamr-launcher/hamrd/rpc"
	"github.com/hamr-launcher/hamrd/session"
)

// methodRoles is the authorization matrix from spec §4.C. "register" is
// handled separately since every session may call it exactly once, from
// Pending.
var methodRoles = map[string][]session.Role{
	"toggle":         {session.RoleUI, session.RoleControl},
	"show":           {session.RoleUI, session.RoleControl},
	"hide":           {session.RoleUI, session.RoleControl},
	"open_plugin":    {session.RoleUI, session.RoleControl},
	"update_status":  {session.RoleUI, session.RoleControl},
	"shutdown":       {session.RoleUI, session.RoleControl},
	"reload_plugins": {session.RoleUI, session.RoleControl},

	"status":       {session.RoleUI, session.RoleControl, session.RolePlugin},
	"index_stats":  {session.RoleUI, session.RoleControl, session.RolePlugin},
	"list_plugins": {session.RoleUI, session.RoleControl, session.RolePlugin},

	"query_changed":           {session.RoleUI},
	"query_submitted":         {session.RoleUI},
	"item_selected":           {session.RoleUI},
	"form_submitted":          {session.RoleUI},
	"ambient_action":          {session.RoleUI},
	"dismiss_ambient":         {session.RoleUI},
	"plugin_action_triggered": {session.RoleUI},
	"back":                    {session.RoleUI},
	"cancel":                  {session.RoleUI},
}

// activeUIOnly is the subset of methodRoles that additionally requires the
// caller to be the registry's current active UI, not merely any registered
// UI session (spec §4.C's "active-UI only" column).
var activeUIOnly = map[string]bool{
	"query_changed":           true,
	"query_submitted":         true,
	"item_selected":           true,
	"form_submitted":          true,
	"ambient_action":          true,
	"dismiss_ambient":         true,
	"plugin_action_triggered": true,
	"back":                    true,
	"cancel":                  true,
}

// Dispatch routes one incoming message to its handler after checking role
// authorization, returning the response to send (nil for notifications and
// for requests with no further reply expected). Plugin-originating
// notifications (plugin_results etc.) are not routed here — see
// HandlePluginNotification.
func Dispatch(hc *Context, sess *session.Session, msg *rpc.Message) *rpc.Message {
	if msg.Method == "register" {
		return handleRegister(hc, sess, msg)
	}

	allowed, known := methodRoles[msg.Method]
	if !known {
		if msg.IsRequest() {
			return rpc.NewErrorResponse(msg.ID, rpc.ErrMethodNotFound)
		}
		log.Warnw("unknown notification method", "method", msg.Method, "session", sess.ID)
		return nil
	}

	if errObj := authorize(hc, sess, msg.Method, allowed); errObj != nil {
		if msg.IsRequest() {
			return rpc.NewErrorResponse(msg.ID, errObj)
		}
		log.Warnw("rejected unauthorized notification", "method", msg.Method, "session", sess.ID, "role", sess.Role)
		return nil
	}

	switch msg.Method {
	case "toggle":
		return handleToggle(hc, msg)
	case "show":
		return handleShow(hc, msg)
	case "hide":
		return handleHide(hc, msg)
	case "open_plugin":
		return handleOpenPlugin(hc, msg)
	case "update_status":
		return handleUpdateStatus(hc, msg)
	case "shutdown":
		return handleShutdown(hc, msg)
	case "reload_plugins":
		return handleReloadPlugins(hc, msg)
	case "status":
		return handleStatus(hc, msg)
	case "index_stats":
		return handleIndexStats(hc, msg)
	case "list_plugins":
		return handleListPlugins(hc, msg)
	case "query_changed":
		return handleQueryChanged(hc, msg)
	case "query_submitted":
		return handleQuerySubmitted(hc, msg)
	case "item_selected":
		return handleItemSelected(hc, msg)
	case "form_submitted":
		return handleFormSubmitted(hc, msg)
	case "ambient_action":
		return handleAmbientAction(hc, msg)
	case "dismiss_ambient":
		return handleDismissAmbient(hc, msg)
	case "plugin_action_triggered":
		return handlePluginActionTriggered(hc, msg)
	case "back":
		return handleBack(hc, msg)
	case "cancel":
		return handleCancel(hc, msg)
	default:
		if msg.IsRequest() {
			return rpc.NewErrorResponse(msg.ID, rpc.ErrMethodNotFound)
		}
		return nil
	}
}

func authorize(hc *Context, sess *session.Session, method string, allowed []session.Role) *rpc.ErrorObject {
	if sess.Role == session.RolePending {
		return rpc.ErrNotRegistered
	}
	roleOK := false
	for _, r := range allowed {
		if r == sess.Role {
			roleOK = true
			break
		}
	}
	if !roleOK {
		return rpc.ErrControlRequired
	}
	if activeUIOnly[method] && !hc.Sessions.IsActiveUI(sess.ID) {
		return rpc.ErrNotActiveUI
	}
	return nil
}

func okResult(msg *rpc.Message) *rpc.Message {
	if !msg.IsRequest() {
		return nil
	}
	result, err := rpc.NewResult(msg.ID, map[string]string{"status": "ok"})
	if err != nil {
		return rpc.NewErrorResponse(msg.ID, rpc.NewError(rpc.CodeInternalError, err.Error()))
	}
	return result
}

func invalidParams(msg *rpc.Message) *rpc.Message {
	if !msg.IsRequest() {
		return nil
	}
	return rpc.NewErrorResponse(msg.ID, rpc.ErrInvalidParams)
}

func handleRegister(hc *Context, sess *session.Session, msg *rpc.Message) *rpc.Message {
	if sess.Role != session.RolePending {
		if msg.IsRequest() {
			return rpc.NewErrorResponse(msg.ID, rpc.ErrAlreadyRegistered)
		}
		return nil
	}

	var p RegisterParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return invalidParams(msg)
	}

	switch p.Role {
	case "ui":
		hc.Sessions.RegisterUI(sess.ID, p.Name)
		hc.Core.ForwardCachedPluginState(sess)
	case "control":
		hc.Sessions.RegisterControl(sess.ID)
	case "plugin":
		if p.ID == "" {
			return invalidParams(msg)
		}
		if m, ok := hc.Plugins.Manifest(p.ID); ok {
			if err := m.CheckDaemonVersion(hc.DaemonVersion); err != nil {
				if msg.IsRequest() {
					return rpc.NewErrorResponse(msg.ID, rpc.NewError(rpc.CodeInvalidParams, err.Error()))
				}
				return nil
			}
		}
		hc.Sessions.RegisterPlugin(sess.ID, p.ID)
		hc.Plugins.MarkConnected(p.ID, sess.ID)
		hc.Core.NotifyPluginRegistered(p.ID)
	default:
		return invalidParams(msg)
	}

	return okResult(msg)
}

func handleToggle(hc *Context, msg *rpc.Message) *rpc.Message {
	if hc.Core.State().IsOpen {
		hc.Core.LauncherClosed()
	} else {
		hc.Core.LauncherOpened()
	}
	return okResult(msg)
}

func handleShow(hc *Context, msg *rpc.Message) *rpc.Message {
	hc.Core.LauncherOpened()
	return okResult(msg)
}

func handleHide(hc *Context, msg *rpc.Message) *rpc.Message {
	hc.Core.LauncherClosed()
	return okResult(msg)
}

func handleOpenPlugin(hc *Context, msg *rpc.Message) *rpc.Message {
	var p openPluginParams
	if err := json.Unmarshal(msg.Params, &p); err != nil || p.ID == "" {
		return invalidParams(msg)
	}
	hc.Core.OpenPlugin(p.ID)
	return okResult(msg)
}

func handleUpdateStatus(hc *Context, msg *rpc.Message) *rpc.Message {
	// No daemon-side state beyond what plugin status notifications already
	// maintain; acknowledged for clients that poll it defensively.
	return okResult(msg)
}

func handleShutdown(hc *Context, msg *rpc.Message) *rpc.Message {
	if hc.OnShutdown != nil {
		hc.OnShutdown()
	}
	return nil // shutdown is a notification; no response expected
}

func handleReloadPlugins(hc *Context, msg *rpc.Message) *rpc.Message {
	dirs := hc.PluginDirs
	if len(msg.Params) > 0 {
		var p reloadPluginsParams
		if err := json.Unmarshal(msg.Params, &p); err == nil && len(p.Dirs) > 0 {
			dirs = p.Dirs
		}
	}
	if err := hc.Core.ReloadPlugins(dirs); err != nil {
		if msg.IsRequest() {
			return rpc.NewErrorResponse(msg.ID, rpc.NewError(rpc.CodeInternalError, err.Error()))
		}
		log.Errorw("reload_plugins failed", "error", err)
		return nil
	}
	return okResult(msg)
}

func handleStatus(hc *Context, msg *rpc.Message) *rpc.Message {
	if !msg.IsRequest() {
		return nil
	}
	state := hc.Core.State()
	var activePlugin *string
	if state.ActivePlugin != nil {
		activePlugin = &state.ActivePlugin.ID
	}
	result, err := rpc.NewResult(msg.ID, map[string]interface{}{
		"isOpen":          state.IsOpen,
		"busy":            state.Busy,
		"activePlugin":    activePlugin,
		"navigationDepth": state.NavigationDepth,
	})
	if err != nil {
		return rpc.NewErrorResponse(msg.ID, rpc.NewError(rpc.CodeInternalError, err.Error()))
	}
	return result
}

func handleIndexStats(hc *Context, msg *rpc.Message) *rpc.Message {
	if !msg.IsRequest() {
		return nil
	}
	result, err := rpc.NewResult(msg.ID, hc.Store.Stats())
	if err != nil {
		return rpc.NewErrorResponse(msg.ID, rpc.NewError(rpc.CodeInternalError, err.Error()))
	}
	return result
}

func handleListPlugins(hc *Context, msg *rpc.Message) *rpc.Message {
	if !msg.IsRequest() {
		return nil
	}
	manifests := hc.Plugins.AllManifests()
	type pluginSummary struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Icon        string `json:"icon,omitempty"`
		Connected   bool   `json:"connected"`
	}
	out := make([]pluginSummary, 0, len(manifests))
	for _, m := range manifests {
		out = append(out, pluginSummary{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			Icon:        m.Icon,
			Connected:   hc.Plugins.IsConnected(m.ID),
		})
	}
	result, err := rpc.NewResult(msg.ID, out)
	if err != nil {
		return rpc.NewErrorResponse(msg.ID, rpc.NewError(rpc.CodeInternalError, err.Error()))
	}
	return result
}

func handleQueryChanged(hc *Context, msg *rpc.Message) *rpc.Message {
	var p queryParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return invalidParams(msg)
	}
	hc.Core.QueryChanged(p.Query)
	return okResult(msg)
}

func handleQuerySubmitted(hc *Context, msg *rpc.Message) *rpc.Message {
	var p queryParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return invalidParams(msg)
	}
	hc.Core.QuerySubmitted(p.Query)
	return okResult(msg)
}

func handleItemSelected(hc *Context, msg *rpc.Message) *rpc.Message {
	var p itemSelectedParams
	if err := json.Unmarshal(msg.Params, &p); err != nil || p.PluginID == "" || p.ID == "" {
		return invalidParams(msg)
	}
	hc.Core.ItemSelected(p.PluginID, p.ID, p.Action)
	return okResult(msg)
}

func handleFormSubmitted(hc *Context, msg *rpc.Message) *rpc.Message {
	var p formSubmittedParams
	if err := json.Unmarshal(msg.Params, &p); err != nil || p.PluginID == "" {
		return invalidParams(msg)
	}
	hc.Core.FormSubmitted(p.PluginID, p.Values)
	return okResult(msg)
}

func handleAmbientAction(hc *Context, msg *rpc.Message) *rpc.Message {
	var p ambientActionParams
	if err := json.Unmarshal(msg.Params, &p); err != nil || p.PluginID == "" || p.ID == "" {
		return invalidParams(msg)
	}
	hc.Core.AmbientAction(p.PluginID, p.ID, p.Action)
	return okResult(msg)
}

func handleDismissAmbient(hc *Context, msg *rpc.Message) *rpc.Message {
	var p dismissAmbientParams
	if err := json.Unmarshal(msg.Params, &p); err != nil || p.PluginID == "" || p.ID == "" {
		return invalidParams(msg)
	}
	hc.Core.DismissAmbient(p.PluginID, p.ID)
	return okResult(msg)
}

func handlePluginActionTriggered(hc *Context, msg *rpc.Message) *rpc.Message {
	var p pluginActionTriggeredParams
	if err := json.Unmarshal(msg.Params, &p); err != nil || p.ActionID == "" {
		return invalidParams(msg)
	}
	hc.Core.PluginActionTriggered(p.ActionID)
	return okResult(msg)
}

func handleBack(hc *Context, msg *rpc.Message) *rpc.Message {
	hc.Core.Back()
	return okResult(msg)
}

func handleCancel(hc *Context, msg *rpc.Message) *rpc.Message {
	hc.Core.Cancel()
	return okResult(msg)
}
