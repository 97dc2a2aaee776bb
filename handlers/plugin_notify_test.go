package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamr-launcher/hamrd/convert"
	"github.com/hamr-launcher/hamrd/session"
)

func registerUIAndPlugin(hc *Context, sessions *session.Registry) (*session.Session, *session.Session) {
	ui := session.New()
	sessions.Add(ui)
	sessions.RegisterUI(ui.ID, "launcher")

	p := session.New()
	sessions.Add(p)
	sessions.RegisterPlugin(p.ID, "apps")

	return ui, p
}

func TestHandlePluginNotificationResultsBroadcastsToActiveUI(t *testing.T) {
	hc, sessions := newTestContext()
	ui, plug := registerUIAndPlugin(hc, sessions)

	raw, _ := json.Marshal(map[string]interface{}{
		"items": []map[string]interface{}{
			{"id": "a", "name": "Alpha"},
		},
	})

	HandlePluginNotification(hc, plug, "plugin_results", raw)

	// Busy{false} then Results.
	first := <-ui.Outbound()
	assert.Equal(t, "busy", first.Method)

	second := <-ui.Outbound()
	assert.Equal(t, "results", second.Method)

	var update convert.CoreUpdate
	require.NoError(t, json.Unmarshal(second.Params, &update))
	require.Len(t, update.Results, 1)
	assert.Equal(t, "Alpha", update.Results[0].Name)
	assert.Equal(t, "application-x-executable", update.Results[0].Icon) // default applied
}

func TestHandlePluginNotificationFromNonPluginSessionIgnored(t *testing.T) {
	hc, sessions := newTestContext()
	ui, _ := registerUIAndPlugin(hc, sessions)

	raw, _ := json.Marshal(map[string]interface{}{"items": []map[string]interface{}{{"id": "a", "name": "Alpha"}}})
	HandlePluginNotification(hc, ui, "plugin_results", raw)

	select {
	case msg := <-ui.Outbound():
		t.Fatalf("expected no broadcast, got %v", msg)
	default:
	}
}

func TestHandlePluginNotificationActivateSetsCoreActivePlugin(t *testing.T) {
	hc, sessions := newTestContext()
	_, plug := registerUIAndPlugin(hc, sessions)

	raw, _ := json.Marshal(map[string]interface{}{
		"items":    []map[string]interface{}{{"id": "a", "name": "Alpha"}},
		"activate": true,
	})

	HandlePluginNotification(hc, plug, "plugin_results", raw)

	state := hc.Core.State()
	require.NotNil(t, state.ActivePlugin)
	assert.Equal(t, "apps", state.ActivePlugin.ID)
}

func TestHandlePluginNotificationStatusAppliesAmbientToCore(t *testing.T) {
	hc, sessions := newTestContext()
	_, plug := registerUIAndPlugin(hc, sessions)

	raw, _ := json.Marshal(map[string]interface{}{
		"ambient": []map[string]interface{}{
			{"id": "x1", "name": "Battery low"},
		},
	})

	HandlePluginNotification(hc, plug, "plugin_status", raw)

	state := hc.Core.State()
	require.Contains(t, state.Ambient, "apps")
	require.Len(t, state.Ambient["apps"], 1)
	assert.Equal(t, "x1", state.Ambient["apps"][0].ID)
}

func TestHandlePluginNotificationStatusCachesBadgesOnCore(t *testing.T) {
	hc, sessions := newTestContext()
	_, plug := registerUIAndPlugin(hc, sessions)

	raw, _ := json.Marshal(map[string]interface{}{
		"badges": []map[string]interface{}{{"text": "3 unread"}},
	})
	HandlePluginNotification(hc, plug, "plugin_status", raw)

	status := hc.Core.State().PluginStatuses["apps"]
	require.NotNil(t, status)
	require.Len(t, status.Badges, 1)
	assert.Equal(t, "3 unread", status.Badges[0].Text)
}

func TestHandlePluginNotificationUnknownMethodIgnored(t *testing.T) {
	hc, sessions := newTestContext()
	ui, plug := registerUIAndPlugin(hc, sessions)

	HandlePluginNotification(hc, plug, "plugin_unknown_thing", json.RawMessage(`{}`))

	select {
	case msg := <-ui.Outbound():
		t.Fatalf("expected no broadcast, got %v", msg)
	default:
	}
}

func TestDecodePluginResponseSynthesizesTypeTag(t *testing.T) {
	raw, _ := json.Marshal(map[string]interface{}{"message": "boom"})
	resp, err := decodePluginResponse(convert.KindError, raw)
	require.NoError(t, err)
	assert.Equal(t, convert.KindError, resp.Kind)
	assert.Equal(t, "boom", resp.Message)
}

func TestBroadcastSearchResultsEncodesItems(t *testing.T) {
	hc, sessions := newTestContext()
	ui := session.New()
	sessions.Add(ui)
	sessions.RegisterUI(ui.ID, "launcher")

	BroadcastSearchResults(hc, nil)

	msg := <-ui.Outbound()
	assert.Equal(t, "results", msg.Method)
	var update convert.CoreUpdate
	require.NoError(t, json.Unmarshal(msg.Params, &update))
	assert.Equal(t, convert.UpdateResults, update.Kind)
	assert.Empty(t, update.Results)
}
