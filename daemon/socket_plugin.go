package daemon

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hamr-launcher/hamrd/logger"
	"github.com/hamr-launcher/hamrd/plugin"
	"github.com/hamr-launcher/hamrd/rpc"
	"github.com/hamr-launcher/hamrd/session"
)

var socketLog = logger.ComponentLogger("daemon.socket")

// Keepalive tuning for a dialed-out socket plugin connection, adapted from
// plugin/grpc/websocket_keepalive.go's KeepaliveHandler idiom (ticker +
// context cancel + lastPong timestamp + timeout check), but driven by
// gorilla/websocket's native control frames instead of that handler's
// protobuf WebSocketMessage type, which this module does not carry.
const (
	socketPingInterval = 30 * time.Second
	socketPongTimeout  = 60 * time.Second
)

// connectSocketPlugin dials a Kind socket plugin's WebSocket endpoint and
// pumps its JSON-RPC traffic through the same session/dispatch machinery a
// stdio pipe or accepted Unix connection uses. It blocks until the
// connection drops and is meant to run in its own goroutine per plugin.
func (d *Daemon) connectSocketPlugin(m *plugin.Manifest) {
	conn, _, err := websocket.DefaultDialer.Dial(m.SocketAddress, nil)
	if err != nil {
		socketLog.Warnw("socket plugin dial failed", logger.FieldPlugin, m.ID, logger.FieldError, err)
		return
	}
	defer conn.Close()

	sess := session.New()
	sess.SetBackpressureHandler(func() {
		socketLog.Warnw("socket plugin session exceeded outbound queue, dropping", logger.FieldPlugin, m.ID)
		conn.Close()
	})
	d.hc.Sessions.Add(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lastPongNanos atomic.Int64
	lastPongNanos.Store(time.Now().UnixNano())
	conn.SetPongHandler(func(string) error {
		lastPongNanos.Store(time.Now().UnixNano())
		return nil
	})

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for msg := range sess.Outbound() {
			raw, err := json.Marshal(msg)
			if err != nil {
				socketLog.Errorw("failed to encode outgoing message", logger.FieldPlugin, m.ID, logger.FieldError, err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				socketLog.Debugw("socket plugin write failed", logger.FieldPlugin, m.ID, logger.FieldError, err)
				return
			}
		}
	}()

	go d.socketKeepaliveLoop(ctx, conn, m.ID, &lastPongNanos)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			socketLog.Debugw("socket plugin connection closed", logger.FieldPlugin, m.ID, logger.FieldError, err)
			break
		}

		var msg rpc.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			socketLog.Warnw("malformed socket plugin frame", logger.FieldPlugin, m.ID, logger.FieldError, err)
			continue
		}
		d.dispatchIncoming(sess, &msg)
	}

	d.teardownSession(sess)
	conn.Close()
	<-writeDone
}

// socketKeepaliveLoop pings the plugin on a fixed interval and logs (without
// forcibly disconnecting, since a slow plugin may still recover) when a pong
// hasn't been seen within the timeout window.
func (d *Daemon) socketKeepaliveLoop(ctx context.Context, conn *websocket.Conn, pluginID string, lastPongNanos *atomic.Int64) {
	ticker := time.NewTicker(socketPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, lastPongNanos.Load())) > socketPongTimeout {
				socketLog.Warnw("socket plugin pong timeout, connection may be stale", logger.FieldPlugin, pluginID)
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				socketLog.Debugw("socket plugin ping failed", logger.FieldPlugin, pluginID, logger.FieldError, err)
				return
			}
		}
	}
}
