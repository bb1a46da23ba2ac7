package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific settings field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "proxy.dial_timeout").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in the settings.
type ValidationError struct {
	// Errors contains all validation errors found.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the settings and returns a ValidationError collecting
// every failed rule, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateWorker(&cfg.Worker)...)
	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateAdmin(cfg)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateCertMonitor(&cfg.CertMonitor)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateWorker(cfg *WorkerConfig) []FieldError {
	var errs []FieldError

	// 0, 1 and 2 are the standard streams.
	if cfg.ConfigFD < 3 {
		errs = append(errs, FieldError{
			Field:   "worker.config_fd",
			Message: fmt.Sprintf("descriptor %d is reserved for standard streams", cfg.ConfigFD),
		})
	}
	if cfg.ParentPollInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "worker.parent_poll_interval",
			Message: "parent poll interval cannot be negative",
		})
	}

	return errs
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.HandshakeTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.handshake_timeout",
			Message: "handshake timeout must be positive",
		})
	}
	if cfg.DialTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.dial_timeout",
			Message: "dial timeout must be positive",
		})
	}
	if cfg.BufferSize < 1024 || cfg.BufferSize > 1<<20 {
		errs = append(errs, FieldError{
			Field:   "proxy.buffer_size",
			Message: fmt.Sprintf("buffer size %d out of range: must be between 1024 and 1048576", cfg.BufferSize),
		})
	}
	if cfg.DrainTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.drain_timeout",
			Message: "drain timeout cannot be negative",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.idle_timeout",
			Message: "idle timeout cannot be negative",
		})
	}
	if cfg.HalfCloseTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.half_close_timeout",
			Message: "half-close timeout cannot be negative",
		})
	}

	return errs
}

func validateAdmin(cfg *Config) []FieldError {
	if !cfg.AdminEnabled() {
		return nil
	}

	var errs []FieldError

	host, port, err := net.SplitHostPort(cfg.Admin.ListenAddress)
	if err != nil {
		return append(errs, FieldError{
			Field:   "admin.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.Admin.ListenAddress, err),
		})
	}
	if port == "" {
		errs = append(errs, FieldError{
			Field:   "admin.listen_address",
			Message: "port is required",
		})
	}
	if !isLoopbackHost(host) {
		errs = append(errs, FieldError{
			Field:   "admin.listen_address",
			Message: fmt.Sprintf("host %q is not a loopback address", host),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text' or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "tracing endpoint is required when tracing is enabled",
			})
		}
		if cfg.Tracing.Exporter != "otlp" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.exporter",
				Message: fmt.Sprintf("unsupported exporter %q: must be 'otlp'", cfg.Tracing.Exporter),
			})
		}
		validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
		if !validSamplers[cfg.Tracing.Sampler] {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.Enabled {
		paths := map[string]string{
			"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
			"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
			"telemetry.health.version_path":   cfg.Health.VersionPath,
		}
		for field, path := range paths {
			if !strings.HasPrefix(path, "/") {
				errs = append(errs, FieldError{
					Field:   field,
					Message: "path must start with /",
				})
			}
		}
		if cfg.Health.CheckTimeout <= 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must be positive",
			})
		}
	}

	return errs
}

func validateCertMonitor(cfg *CertMonitorConfig) []FieldError {
	if !cfg.MonitorEnabled() {
		return nil
	}

	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "cert_monitor.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		})
	}
	if cfg.WarnDays < 0 {
		errs = append(errs, FieldError{
			Field:   "cert_monitor.warn_days",
			Message: "warn days cannot be negative",
		})
	}

	return errs
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
