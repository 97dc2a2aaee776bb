package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across the daemon.
// Use these constants instead of raw strings to keep log lines greppable.
const (
	FieldComponent  = "component"
	FieldSessionID  = "session_id"
	FieldRole       = "role"
	FieldPlugin     = "plugin"
	FieldMethod     = "method"
	FieldRequestID  = "request_id"
	FieldQuery      = "query"
	FieldDurationMS = "duration_ms"

	FieldError     = "error"
	FieldErrorCode = "error_code"

	FieldCount = "count"
	FieldState = "state"

	FieldSocketPath = "socket_path"
	FieldPID        = "pid"
)

type contextKey string

const sessionIDKey contextKey = "logger_session_id"

// WithSessionID attaches a session id to the context for logging.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// LoggerFromContext returns a logger enriched with the session id, if present.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok && sessionID != "" {
		return Logger.With(FieldSessionID, sessionID)
	}
	return Logger
}

// ComponentLogger returns a named logger for a specific component.
// Preferred way to obtain a logger for dependency injection into a subsystem.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
