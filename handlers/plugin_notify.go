package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/hamr-launcher/hamrd/convert"
	"github.com/hamr-launcher/hamrd/core"
	"github.com/hamr-launcher/hamrd/rpc"
	"github.com/hamr-launcher/hamrd/search"
	"github.com/hamr-launcher/hamrd/session"
)

// pluginNotificationKind maps the distinct RPC method names a plugin
// connection sends into the convert.Kind tag that PluginResponse's
// UnmarshalJSON dispatches on. Plugins never send a "type" field directly —
// the method name IS the type.
var pluginNotificationKind = map[string]convert.Kind{
	"plugin_results": convert.KindResults,
	"plugin_execute": convert.KindExecute,
	"plugin_card":    convert.KindCard,
	"plugin_form":    convert.KindForm,
	"plugin_index":   convert.KindIndex,
	"plugin_status":  convert.KindStatus,
	"plugin_update":  convert.KindUpdate,
	"plugin_error":   convert.KindError,
	"plugin_prompt":  convert.KindPrompt,
	"plugin_match":   convert.KindMatch,
	"plugin_noop":    convert.KindNoop,
	"plugin_images":  convert.KindImageBrowser,
	"plugin_grid":    convert.KindGridBrowser,
}

// IsPluginNotificationMethod reports whether method names one of the
// plugin-response shapes HandlePluginNotification decodes, as opposed to a
// request-style method a plugin session is also allowed to call (status,
// index_stats, list_plugins, register).
func IsPluginNotificationMethod(method string) bool {
	_, ok := pluginNotificationKind[method]
	return ok
}

// HandlePluginNotification decodes a plugin connection's notification into
// a convert.PluginResponse, translates it to the ordered core-update
// stream (component I), applies each update's side effect to core state,
// and broadcasts it to the active UI (spec §4.I/§4.K).
func HandlePluginNotification(hc *Context, sess *session.Session, method string, raw json.RawMessage) {
	if sess.Role != session.RolePlugin {
		log.Warnw("notification from non-plugin session ignored", "method", method, "session", sess.ID, "role", sess.Role)
		return
	}

	kind, ok := pluginNotificationKind[method]
	if !ok {
		log.Warnw("unknown plugin notification method", "method", method, "session", sess.ID)
		return
	}

	resp, err := decodePluginResponse(kind, raw)
	if err != nil {
		log.Errorw("failed to decode plugin response", "method", method, "plugin", sess.PluginID, "error", err)
		return
	}

	updates := convert.ToUpdates(sess.PluginID, resp)
	ApplyAndBroadcast(hc, sess.PluginID, updates)
}

// decodePluginResponse re-tags raw params with the synthetic "type" field
// convert.PluginResponse.UnmarshalJSON expects, since the transport here
// distinguishes payload kind by RPC method name instead of an embedded
// discriminator. plugin_status params may be the status payload itself
// (badges, ambient, ... at the top level); those are nested under "status".
func decodePluginResponse(kind convert.Kind, raw json.RawMessage) (convert.PluginResponse, error) {
	var resp convert.PluginResponse

	fields := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return resp, fmt.Errorf("decode plugin notification params: %w", err)
		}
	}
	if _, nested := fields["status"]; kind == convert.KindStatus && len(raw) > 0 && !nested {
		fields = map[string]json.RawMessage{"status": raw}
	}
	fields["type"] = json.RawMessage(`"` + string(kind) + `"`)

	retagged, err := json.Marshal(fields)
	if err != nil {
		return resp, fmt.Errorf("re-tag plugin notification params: %w", err)
	}

	if err := json.Unmarshal(retagged, &resp); err != nil {
		return resp, fmt.Errorf("decode plugin response: %w", err)
	}
	return resp, nil
}

// ApplyAndBroadcast applies each update's core-state side effect (if any)
// then broadcasts it to the active UI session as a notification named
// after its kind.
func ApplyAndBroadcast(hc *Context, pluginID string, updates []convert.CoreUpdate) {
	for _, u := range updates {
		applyCoreSideEffect(hc, pluginID, u)

		msg, err := rpc.NewNotification(string(u.Kind), u)
		if err != nil {
			log.Errorw("failed to encode core update", "kind", u.Kind, "plugin", pluginID, "error", err)
			continue
		}
		hc.Sessions.Broadcast(msg)
	}
}

func applyCoreSideEffect(hc *Context, pluginID string, u convert.CoreUpdate) {
	switch u.Kind {
	case convert.UpdateBusy:
		hc.Core.SetBusy(u.Busy)
	case convert.UpdateActivatePlugin:
		hc.Core.Activate(pluginID)
	case convert.UpdateAmbientUpdate:
		hc.Core.ApplyAmbientUpdate(pluginID, u.AmbientItems)
	case convert.UpdatePluginStatusUpdate:
		hc.Core.CachePluginStatus(pluginID, u.Status)
	case convert.UpdateNavigationDepth:
		if u.NavigationDepth != nil {
			hc.Core.SetNavigationDepth(*u.NavigationDepth)
		}
	case convert.UpdateResults:
		hc.Core.SetView(core.ViewResults)
	case convert.UpdateCard, convert.UpdateForm:
		hc.Core.SetView(core.ViewForm)
	case convert.UpdateImageBrowser:
		hc.Core.SetView(core.ViewImageBrowser)
	case convert.UpdateGridBrowser:
		hc.Core.SetView(core.ViewGridBrowser)
	}
}

// BroadcastSearchResults encodes a global-search match set as a results
// CoreUpdate and broadcasts it. Used by the daemon's Router implementation
// when routing a query with no active plugin (component G's output
// crossing into component K's broadcast layer).
func BroadcastSearchResults(hc *Context, matches []search.Match) {
	items := make([]convert.ResultItem, 0, len(matches))
	for _, m := range matches {
		if m.Item == nil {
			continue
		}
		items = append(items, convert.ResultItem{
			ID:          m.Item.Item.ID,
			Name:        m.Item.Item.Name,
			Description: m.Item.Item.Description,
			Icon:        m.Item.Item.Icon,
		})
	}

	update := convert.CoreUpdate{Kind: convert.UpdateResults, Results: items}
	msg, err := rpc.NewNotification(string(update.Kind), update)
	if err != nil {
		log.Errorw("failed to encode search results", "error", err)
		return
	}
	hc.Sessions.Broadcast(msg)
}
