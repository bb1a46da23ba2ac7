package logging

import (
	"context"
)

// Context keys for connection-scoped log fields.
type contextKey string

const (
	// ConnIDKey is the context key for connection IDs.
	ConnIDKey contextKey = "conn_id"

	// ListenerKey is the context key for the accepting listener address.
	ListenerKey contextKey = "listener"

	// RemoteAddrKey is the context key for the client address.
	RemoteAddrKey contextKey = "remote_addr"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// WithConnID adds a connection ID to the context.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ConnIDKey, id)
}

// GetConnID retrieves the connection ID from the context.
func GetConnID(ctx context.Context) string {
	if id, ok := ctx.Value(ConnIDKey).(string); ok {
		return id
	}
	return ""
}

// WithListener adds the accepting listener address to the context.
func WithListener(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ListenerKey, addr)
}

// GetListener retrieves the listener address from the context.
func GetListener(ctx context.Context) string {
	if addr, ok := ctx.Value(ListenerKey).(string); ok {
		return addr
	}
	return ""
}

// WithRemoteAddr adds the client address to the context.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, RemoteAddrKey, addr)
}

// GetRemoteAddr retrieves the client address from the context.
func GetRemoteAddr(ctx context.Context) string {
	if addr, ok := ctx.Value(RemoteAddrKey).(string); ok {
		return addr
	}
	return ""
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// extractContextFields returns the connection fields of ctx as key-value
// pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if id := GetConnID(ctx); id != "" {
		fields = append(fields, "conn_id", id)
	}
	if addr := GetListener(ctx); addr != "" {
		fields = append(fields, "listener", addr)
	}
	if addr := GetRemoteAddr(ctx); addr != "" {
		fields = append(fields, "remote_addr", addr)
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	return fields
}
