package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the subcommand that logged a record.
	FieldComponent = "component"
	// FieldKdamond is the kdamond index a record is about.
	FieldKdamond = "kdamond"
	// FieldTarget is the monitoring target as given on the command line.
	FieldTarget = "target"
	// FieldSessionID groups the records of one damo invocation.
	FieldSessionID = "session_id"
)

type sessionKey struct{}

// ContextWithSessionID attaches a session identifier to ctx.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFromContext returns the session identifier attached to ctx.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// WithContext returns a logger whose records carry the session identifier
// found in ctx, if any.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	id, ok := SessionIDFromContext(ctx)
	if !ok {
		return logger
	}
	return logger.With(String(FieldSessionID, id))
}
