// Package session implements the daemon's per-connection identity registry
// (component C): role assignment, the single active-UI pointer, and the
// bounded outbound message queue used for back-pressure.
package session

import (
	"github.com/google/uuid"

	"github.com/hamr-launcher/hamrd/rpc"
)

// MaxOutboundQueue is the number of pending outbound messages a session may
// accumulate before the daemon drops it to bound memory.
const MaxOutboundQueue = 1024

// Role identifies what a registered session is allowed to do.
type Role int

const (
	// RolePending is the role every session starts in before register.
	RolePending Role = iota
	RoleUI
	RoleControl
	RolePlugin
)

func (r Role) String() string {
	switch r {
	case RoleUI:
		return "ui"
	case RoleControl:
		return "control"
	case RolePlugin:
		return "plugin"
	default:
		return "pending"
	}
}

// Session is one connected client: a transport-agnostic identity plus its
// single-consumer outbound channel. The read/write loops around the
// underlying socket live in package daemon; this type only tracks identity
// and the channel contract.
type Session struct {
	ID   string
	Role Role

	// UIName is set when Role == RoleUI.
	UIName string
	// PluginID is set when Role == RolePlugin.
	PluginID string

	outbound chan *rpc.Message
	closed   bool

	// onBackpressureDrop, if set, fires the first time Send finds the
	// outbound queue full, so the daemon can tear the connection down per
	// the 1024-pending-message back-pressure policy (spec §3 Wire codec).
	onBackpressureDrop func()
	dropFired          bool
}

// New creates a Pending session with a fresh process-unique id.
func New() *Session {
	return &Session{
		ID:       uuid.NewString(),
		Role:     RolePending,
		outbound: make(chan *rpc.Message, MaxOutboundQueue),
	}
}

// Outbound returns the channel the session's write loop drains. Handlers
// enqueue onto it via Send.
func (s *Session) Outbound() <-chan *rpc.Message {
	return s.outbound
}

// SetBackpressureHandler installs the callback invoked the first time this
// session's outbound queue overflows. The daemon uses it to disconnect the
// session per the back-pressure policy.
func (s *Session) SetBackpressureHandler(fn func()) {
	s.onBackpressureDrop = fn
}

// Send enqueues a message for delivery to this session. Returns false,
// without blocking, if the outbound queue is full — the caller (the
// registry) is responsible for dropping the session when this happens.
func (s *Session) Send(msg *rpc.Message) bool {
	if s.closed {
		return false
	}
	select {
	case s.outbound <- msg:
		return true
	default:
		if !s.dropFired && s.onBackpressureDrop != nil {
			s.dropFired = true
			s.onBackpressureDrop()
		}
		return false
	}
}

// Close marks the session closed and closes its outbound channel, unblocking
// the write loop. Safe to call once; a second call is a no-op.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbound)
}

// IsRegistered reports whether the session has completed registration.
func (s *Session) IsRegistered() bool {
	return s.Role != RolePending
}
