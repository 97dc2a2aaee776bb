package daemon

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/hamr-launcher/hamrd/handlers"
	"github.com/hamr-launcher/hamrd/logger"
	"github.com/hamr-launcher/hamrd/rpc"
	"github.com/hamr-launcher/hamrd/session"
	"github.com/hamr-launcher/hamrd/wire"
)

var connLog = logger.ComponentLogger("daemon.conn")

// pipeConn adapts a spawned stdio plugin's separate stdout/stdin pipes into
// the single io.ReadWriteCloser handleConn expects from an accepted
// net.Conn, so both transports share one read/write loop.
type pipeConn struct {
	io.ReadCloser
	io.WriteCloser
}

func (p pipeConn) Close() error {
	werr := p.WriteCloser.Close()
	rerr := p.ReadCloser.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// detectFraming peeks the connection's first byte to pick the framing style
// the client used, per spec.md's "two acceptable framings... advertised at
// handshake": with wire.MaxFrameSize capped at 16 MiB (0x01000000), a valid
// length prefix's most significant byte can only be 0x00 or 0x01. Any other
// first byte — notably '{' (0x7b), the start of any UTF-8 JSON value — can
// only be the start of an LF-terminated frame.
func detectFraming(br *bufio.Reader) (wire.Framing, error) {
	b, err := br.Peek(1)
	if err != nil {
		return wire.LFTerminated, err
	}
	if b[0] == 0x00 || b[0] == 0x01 {
		return wire.LengthPrefixed, nil
	}
	return wire.LFTerminated, nil
}

// handleConn runs one connection's full lifecycle: framing detection,
// session registration against hc, a read loop dispatching decoded frames,
// and a write loop draining the session's outbound queue. It blocks until
// the connection closes (peer disconnect, protocol error, or back-pressure
// drop) and is meant to be called from its own goroutine, for both accepted
// Unix-socket connections and attached stdio-plugin pipes.
func (d *Daemon) handleConn(conn io.ReadWriteCloser) {
	sess := session.New()
	sess.SetBackpressureHandler(func() {
		connLog.Warnw("session exceeded outbound queue, dropping", logger.FieldSessionID, sess.ID)
		conn.Close()
	})
	d.hc.Sessions.Add(sess)
	connLog.Debugw("connection accepted", logger.FieldSessionID, sess.ID)

	br := bufio.NewReaderSize(conn, 4096)
	framing, err := detectFraming(br)
	if err != nil {
		d.teardownSession(sess)
		conn.Close()
		return
	}

	reader := wire.NewReader(br, framing)
	writer := wire.NewWriter(conn, framing)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for msg := range sess.Outbound() {
			raw, err := json.Marshal(msg)
			if err != nil {
				connLog.Errorw("failed to encode outgoing message", logger.FieldSessionID, sess.ID, logger.FieldError, err)
				continue
			}
			if err := writer.WriteFrame(raw); err != nil {
				connLog.Debugw("write failed, closing connection", logger.FieldSessionID, sess.ID, logger.FieldError, err)
				conn.Close()
				return
			}
		}
	}()

	d.readLoop(sess, reader)

	d.teardownSession(sess)
	conn.Close()
	<-writeDone
}

func (d *Daemon) readLoop(sess *session.Session, reader *wire.Reader) {
	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			if err != io.EOF {
				connLog.Debugw("connection read error", logger.FieldSessionID, sess.ID, logger.FieldError, err)
			}
			return
		}

		var msg rpc.Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			connLog.Warnw("malformed frame, closing session", logger.FieldSessionID, sess.ID, logger.FieldError, err)
			return
		}

		d.dispatchIncoming(sess, &msg)
	}
}

func (d *Daemon) dispatchIncoming(sess *session.Session, msg *rpc.Message) {
	if sess.Role == session.RolePlugin && handlers.IsPluginNotificationMethod(msg.Method) {
		handlers.HandlePluginNotification(d.hc, sess, msg.Method, msg.Params)
		return
	}

	resp := handlers.Dispatch(d.hc, sess, msg)
	if resp != nil {
		sess.Send(resp)
	}
}

// teardownSession removes a disconnecting session from every registry it
// may have joined, and closes its outbound channel so the write loop exits.
// A departing active UI implicitly loses the active-UI slot (Registry.Remove
// already clears it); its on-demand active plugin, if any, is left running —
// spec.md only ties on-demand stop to the LauncherClosed event, not to a UI
// connection dropping out from under an open launcher.
func (d *Daemon) teardownSession(sess *session.Session) {
	if sess.Role == session.RolePlugin && sess.PluginID != "" {
		d.hc.Plugins.MarkDisconnected(sess.PluginID)
	}
	d.hc.Sessions.Remove(sess.ID)
	sess.Close()
	connLog.Debugw("connection closed", logger.FieldSessionID, sess.ID)
}
