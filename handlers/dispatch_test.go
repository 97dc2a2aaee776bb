package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamr-launcher/hamrd/convert"
	"github.com/hamr-launcher/hamrd/core"
	"github.com/hamr-launcher/hamrd/index"
	"github.com/hamr-launcher/hamrd/plugin"
	"github.com/hamr-launcher/hamrd/rpc"
	"github.com/hamr-launcher/hamrd/session"
	"github.com/hamr-launcher/hamrd/spawner"
)

func newTestContext() (*Context, *session.Registry) {
	sessions := session.NewRegistry()
	plugins := plugin.NewRegistry()
	store := index.New()
	c := core.New(sessions, plugins, spawner.New(), store)
	c.QueryDebounce = 5 * time.Millisecond
	return &Context{
		Core:          c,
		Sessions:      sessions,
		Plugins:       plugins,
		Store:         store,
		DaemonVersion: "dev",
		PluginDirs:    nil,
	}, sessions
}

func reqID(n int) rpc.ID {
	raw, _ := json.Marshal(n)
	return raw
}

func TestDispatchRegisterUI(t *testing.T) {
	hc, sessions := newTestContext()
	sess := session.New()
	sessions.Add(sess)

	params, _ := json.Marshal(RegisterParams{Role: "ui", Name: "launcher"})
	msg := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(1), Method: "register", Params: params}

	resp := Dispatch(hc, sess, msg)
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
	assert.Equal(t, session.RoleUI, sess.Role)
	assert.True(t, sessions.IsActiveUI(sess.ID))
}

func TestDispatchRegisterUIForwardsCachedPluginStatus(t *testing.T) {
	hc, sessions := newTestContext()
	desc := "3 unread"
	hc.Core.CachePluginStatus("mail", &convert.PluginStatus{Description: &desc})

	sess := session.New()
	sessions.Add(sess)
	params, _ := json.Marshal(RegisterParams{Role: "ui", Name: "launcher"})
	msg := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(1), Method: "register", Params: params}

	Dispatch(hc, sess, msg)

	forwarded := <-sess.Outbound()
	assert.Equal(t, "pluginStatusUpdate", forwarded.Method)
}

func TestDispatchRegisterTwiceFails(t *testing.T) {
	hc, sessions := newTestContext()
	sess := session.New()
	sessions.Add(sess)

	params, _ := json.Marshal(RegisterParams{Role: "control"})
	first := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(1), Method: "register", Params: params}
	Dispatch(hc, sess, first)

	second := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(2), Method: "register", Params: params}
	resp := Dispatch(hc, sess, second)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeAlreadyRegistered, resp.Error.Code)
}

func TestDispatchUnregisteredSessionRejected(t *testing.T) {
	hc, sessions := newTestContext()
	sess := session.New()
	sessions.Add(sess)

	msg := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(1), Method: "toggle"}
	resp := Dispatch(hc, sess, msg)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeNotRegistered, resp.Error.Code)
}

func TestDispatchPluginCannotToggle(t *testing.T) {
	hc, sessions := newTestContext()
	sess := session.New()
	sessions.Add(sess)
	sessions.RegisterPlugin(sess.ID, "apps")

	msg := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(1), Method: "toggle"}
	resp := Dispatch(hc, sess, msg)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeControlRequired, resp.Error.Code)
}

func TestDispatchQueryChangedRequiresActiveUI(t *testing.T) {
	hc, sessions := newTestContext()

	activeUI := session.New()
	sessions.Add(activeUI)
	sessions.RegisterUI(activeUI.ID, "first")

	otherUI := session.New()
	sessions.Add(otherUI)
	sessions.RegisterUI(otherUI.ID, "second")

	// otherUI is now active (demote-not-evict means activeUI is demoted but
	// stays RoleUI); only the active one may call query_changed.
	params, _ := json.Marshal(queryParams{Query: "fi"})

	activeMsg := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(1), Method: "query_changed", Params: params}
	resp := Dispatch(hc, activeUI, activeMsg)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeNotActiveUI, resp.Error.Code)

	otherMsg := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(2), Method: "query_changed", Params: params}
	resp2 := Dispatch(hc, otherUI, otherMsg)
	require.NotNil(t, resp2)
	assert.Nil(t, resp2.Error)
}

func TestDispatchUnknownMethod(t *testing.T) {
	hc, sessions := newTestContext()
	sess := session.New()
	sessions.Add(sess)
	sessions.RegisterControl(sess.ID)

	msg := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(1), Method: "does_not_exist"}
	resp := Dispatch(hc, sess, msg)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}

func TestDispatchStatusReturnsCoreState(t *testing.T) {
	hc, sessions := newTestContext()
	sess := session.New()
	sessions.Add(sess)
	sessions.RegisterControl(sess.ID)

	hc.Core.LauncherOpened()

	msg := &rpc.Message{JSONRPC: rpc.Version, ID: reqID(1), Method: "status"}
	resp := Dispatch(hc, sess, msg)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Result, &body))
	assert.Equal(t, true, body["isOpen"])
}

func TestDispatchShutdownInvokesCallback(t *testing.T) {
	hc, sessions := newTestContext()
	sess := session.New()
	sessions.Add(sess)
	sessions.RegisterControl(sess.ID)

	called := false
	hc.OnShutdown = func() { called = true }

	msg := &rpc.Message{JSONRPC: rpc.Version, Method: "shutdown"} // notification: no id
	resp := Dispatch(hc, sess, msg)
	assert.Nil(t, resp)
	assert.True(t, called)
}
