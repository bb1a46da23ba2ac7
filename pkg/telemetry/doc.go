// Package telemetry wires together the worker's observability.
//
// # Components
//
//   - logging: structured logging with key material redaction
//   - metrics: Prometheus connection and lifecycle metrics
//   - tracing: one OpenTelemetry span per client connection
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, health.VersionInfo{Version: version}, os.Stdout)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	log := tel.Logger()
//	log.Info("TLS proxy listening", "addr", addr)
//
//	if h := tel.Handler(); h != nil {
//	    adminMux.Handle("/", h)
//	}
//
// Metrics, tracing and health are off by default. Logging is always on.
// The admin endpoints are served only on a loopback address.
//
// # Redaction
//
// PEM blocks and sensitive keys ("key", "cert", "private", ...) are masked
// in log records unless redaction is explicitly disabled.
package telemetry
