package config

import "time"

// Config is the root runtime settings structure for the TLS worker.
//
// These settings tune how the worker runs (timeouts, logging, the admin
// endpoint). They are separate from the certificate material and socket
// descriptors the supervisor hands over on the configuration descriptor,
// which are never read from disk.
type Config struct {
	// Worker contains settings for the supervisor handoff.
	Worker WorkerConfig `yaml:"worker"`

	// Proxy contains per-connection relay settings.
	Proxy ProxyConfig `yaml:"proxy"`

	// Admin contains the loopback admin HTTP listener settings used for
	// metrics and health endpoints.
	Admin AdminConfig `yaml:"admin"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// CertMonitor contains the periodic certificate expiry check settings.
	CertMonitor CertMonitorConfig `yaml:"cert_monitor"`
}

// WorkerConfig contains settings for the supervisor handoff.
type WorkerConfig struct {
	// ConfigFD is the inherited descriptor carrying the JSON configuration.
	// Default: 42
	ConfigFD int `yaml:"config_fd"`

	// ParentPollInterval is how often the parent PID is checked to detect
	// supervisor death on platforms without a parent-death signal.
	// Default: 1s
	ParentPollInterval time.Duration `yaml:"parent_poll_interval"`
}

// ProxyConfig contains per-connection relay settings.
type ProxyConfig struct {
	// HandshakeTimeout bounds the TLS handshake of an accepted connection.
	// Default: 10s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// DialTimeout bounds the connection attempt to the loopback backend.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// BufferSize is the size of the copy buffer used per relay direction.
	// Default: 32768
	BufferSize int `yaml:"buffer_size"`

	// DrainTimeout bounds how long in-flight connections may run after a
	// termination signal. Zero waits for them to finish naturally.
	// Default: 0
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	// IdleTimeout closes a relayed connection when neither direction has
	// moved data for this long. Zero disables the check.
	// Default: 0
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// HalfCloseTimeout bounds how long the still-open direction of a
	// connection may stay silent after the other side has finished.
	// Default: 30s
	HalfCloseTimeout time.Duration `yaml:"half_close_timeout"`
}

// AdminConfig contains the admin HTTP listener settings.
type AdminConfig struct {
	// ListenAddress is the loopback address for metrics and health endpoints.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// AccessLog writes an access log line per admin request.
	// Default: false
	AccessLog bool `yaml:"access_log"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains per-connection tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks private key material and sensitive fields.
	// Default: true
	RedactSecrets *bool `yaml:"redact_secrets"`

	// RedactPatterns contains extra redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string that replaces each match.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "gl_tls_worker"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains per-connection tracing configuration.
type TracingConfig struct {
	// Enabled controls whether connection spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of connections to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the span exporter. Only "otlp" is supported.
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name attached to spans.
	// Default: "gl-tls-worker"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter settings.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter settings.
type OTLPConfig struct {
	// Insecure disables transport security towards the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	// Enabled controls whether health endpoints are served.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the liveness endpoint path.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the readiness endpoint path.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the version endpoint path.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout bounds each individual check.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// CertMonitorConfig contains the certificate expiry monitor settings.
type CertMonitorConfig struct {
	// Enabled controls whether the monitor runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Schedule is a cron expression, descriptors such as "@every 12h" included.
	// Default: "@every 12h"
	Schedule string `yaml:"schedule"`

	// WarnDays logs a warning when the leaf expires within this many days.
	// Default: 30
	WarnDays int `yaml:"warn_days"`
}

// RedactionEnabled reports whether secret redaction is on.
func (c LoggingConfig) RedactionEnabled() bool {
	return c.RedactSecrets == nil || *c.RedactSecrets
}

// MonitorEnabled reports whether the certificate monitor should run.
func (c CertMonitorConfig) MonitorEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AdminEnabled reports whether any admin endpoint is configured.
func (c *Config) AdminEnabled() bool {
	return c.Telemetry.Metrics.Enabled || c.Telemetry.Health.Enabled
}
