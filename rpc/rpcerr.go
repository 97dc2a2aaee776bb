package rpc

import (
	"fmt"

	hamrerrors "github.com/hamr-launcher/hamrd/errors"
)

// Error unifies the failure modes a session or plugin connection can hit:
// transport, codec, and RPC-level errors, following the same enum shape as
// the original Rust client's unified error type.
type Error struct {
	kind    errKind
	code    int
	message string
	cause   error
}

type errKind int

const (
	kindRPC errKind = iota
	kindDisconnected
	kindTimeout
	kindCodec
	kindUnexpectedResponse
)

// RPC wraps a JSON-RPC error code/message as an Error.
func RPC(code int, message string) *Error {
	return &Error{kind: kindRPC, code: code, message: message}
}

// Disconnected reports that the peer closed the connection.
func Disconnected() *Error { return &Error{kind: kindDisconnected} }

// Timeout reports that a request did not receive a response in time.
func Timeout() *Error { return &Error{kind: kindTimeout} }

// Codec wraps a framing/decoding failure.
func Codec(cause error) *Error { return &Error{kind: kindCodec, cause: cause} }

// UnexpectedResponse reports a response that does not match any outstanding
// request id.
func UnexpectedResponse() *Error { return &Error{kind: kindUnexpectedResponse} }

func (e *Error) Error() string {
	switch e.kind {
	case kindRPC:
		return fmt.Sprintf("RPC error %d: %s", e.code, e.message)
	case kindDisconnected:
		return "Connection closed"
	case kindTimeout:
		return "Request timeout"
	case kindCodec:
		return fmt.Sprintf("Codec error: %v", e.cause)
	case kindUnexpectedResponse:
		return "Unexpected response"
	default:
		return "unknown rpc error"
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the JSON-RPC error code, valid only when Error came from RPC.
func (e *Error) Code() int { return e.code }

// FromErrorObject converts a wire ErrorObject into an Error.
func FromErrorObject(obj *ErrorObject) *Error {
	return RPC(obj.Code, obj.Message)
}

// WithHint attaches an operator-facing hint the way the daemon's ambient
// error package does for every fatal startup failure.
func WithHint(err error, hint string) error {
	return hamrerrors.WithHint(err, hint)
}
