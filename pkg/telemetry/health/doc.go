// Package health provides liveness and readiness endpoints for the TLS
// worker's loopback admin server.
//
// # Endpoints
//
//   - /health: liveness, 200 while the process answers HTTP
//   - /ready: readiness, 200 only when every registered check passes
//   - /version: build information
//
// The paths are configurable under telemetry.health.
//
// # Checks
//
// The worker registers four readiness checks:
//
//   - lifecycle: the worker is Running (fails while draining)
//   - listeners: at least one inherited listener accepts connections
//   - backend: a TCP dial to the loopback backend succeeds
//   - certificate: the served certificate has not expired
//
// Checks run concurrently, each bounded by the checker timeout:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck(health.CheckBackend, health.BackendCheck("127.0.0.1:8082"))
//	health.Mount(mux, checker, paths, info)
package health
