package config

import "time"

// Default values for configuration fields.
const (
	// Worker defaults
	DefaultConfigFD           = 42
	DefaultParentPollInterval = 1 * time.Second

	// Proxy defaults
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultDialTimeout      = 5 * time.Second
	DefaultBufferSize       = 32 * 1024
	DefaultDrainTimeout     = time.Duration(0)
	DefaultIdleTimeout      = time.Duration(0)
	DefaultHalfCloseTimeout = 30 * time.Second

	// Admin defaults
	DefaultAdminListenAddress = "127.0.0.1:9464"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Metrics defaults
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "gl_tls_worker"

	// Tracing defaults
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingExporter    = "otlp"
	DefaultTracingService     = "gl-tls-worker"
	DefaultOTLPTimeout        = 10 * time.Second

	// Health defaults
	DefaultLivenessPath  = "/health"
	DefaultReadinessPath = "/ready"
	DefaultVersionPath   = "/version"
	DefaultCheckTimeout  = 2 * time.Second

	// Certificate monitor defaults
	DefaultCertMonitorSchedule = "@every 12h"
	DefaultCertWarnDays        = 30
)

// NewDefaultConfig returns a Config with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
// Explicitly set values are left untouched.
func ApplyDefaults(cfg *Config) {
	// Worker defaults
	if cfg.Worker.ConfigFD == 0 {
		cfg.Worker.ConfigFD = DefaultConfigFD
	}
	if cfg.Worker.ParentPollInterval == 0 {
		cfg.Worker.ParentPollInterval = DefaultParentPollInterval
	}

	// Proxy defaults
	if cfg.Proxy.HandshakeTimeout == 0 {
		cfg.Proxy.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Proxy.DialTimeout == 0 {
		cfg.Proxy.DialTimeout = DefaultDialTimeout
	}
	if cfg.Proxy.BufferSize == 0 {
		cfg.Proxy.BufferSize = DefaultBufferSize
	}
	if cfg.Proxy.HalfCloseTimeout == 0 {
		cfg.Proxy.HalfCloseTimeout = DefaultHalfCloseTimeout
	}

	// Admin defaults
	if cfg.Admin.ListenAddress == "" {
		cfg.Admin.ListenAddress = DefaultAdminListenAddress
	}

	// Telemetry defaults
	applyTelemetryDefaults(&cfg.Telemetry)

	// Certificate monitor defaults
	if cfg.CertMonitor.Enabled == nil {
		enabled := true
		cfg.CertMonitor.Enabled = &enabled
	}
	if cfg.CertMonitor.Schedule == "" {
		cfg.CertMonitor.Schedule = DefaultCertMonitorSchedule
	}
	if cfg.CertMonitor.WarnDays == 0 {
		cfg.CertMonitor.WarnDays = DefaultCertWarnDays
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}
	if t.Logging.RedactSecrets == nil {
		redact := true
		t.Logging.RedactSecrets = &redact
	}

	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Exporter == "" {
		t.Tracing.Exporter = DefaultTracingExporter
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingService
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.VersionPath == "" {
		t.Health.VersionPath = DefaultVersionPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultCheckTimeout
	}
}
