// Package metrics provides Prometheus metrics for the TLS worker.
//
// # Metrics Categories
//
//   - Connection metrics: accepted, rejected, active connections and their lifetime
//   - Relay metrics: handshake latency and failures, backend dial errors, relayed bytes
//   - Process metrics: lifecycle state, certificate expiry, open listeners
//
// All names are prefixed with the configured namespace (gl_tls_worker by
// default), for example gl_tls_worker_connections_active.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	done := collector.ConnectionAccepted(listenerAddr)
//	defer done()
//	collector.RecordHandshake("TLS 1.3", elapsed)
//	collector.AddRelayedBytes(metrics.DirectionUpstream, n)
//
// A nil collector is valid and records nothing, so components can take one
// unconditionally.
//
// # Prometheus Endpoint
//
// Handler serves the collector's registry. The worker mounts it on the
// loopback admin server at telemetry.metrics.path.
package metrics
