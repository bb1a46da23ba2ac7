// Package tracing provides optional OpenTelemetry spans for client
// connections.
//
// Each accepted connection gets one root span, tls.connection, with child
// spans for the handshake and the backend dial. The relayed bytes are opaque,
// so no trace context is propagated to the backend; the spans only describe
// the worker's own work.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.StartConnection(ctx, tracing.ConnInfo{ID: id, Listener: addr, Remote: peer})
//	...
//	tracing.EndConnection(span, up, down, reason, err)
//
// When telemetry.tracing.enabled is false the tracer hands out noop spans.
//
// # Export
//
// Spans are batched and exported over OTLP/gRPC to telemetry.tracing.endpoint.
// Export never blocks connection handling; an unreachable collector only
// loses spans.
//
// # Sampling
//
//   - always: every connection
//   - never: no connection
//   - ratio: a fraction of connections, telemetry.tracing.sample_ratio
package tracing
