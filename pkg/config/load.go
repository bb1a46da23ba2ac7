package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "GL_TLS_WORKER_"

// LoadConfig loads settings from a YAML file at the specified path.
// It applies default values, validates the result, and returns any errors.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse settings file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads settings from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// GL_TLS_WORKER_SECTION_FIELD (e.g. GL_TLS_WORKER_PROXY_DIAL_TIMEOUT) and
// always take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("settings validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the settings.
// Unparseable values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Worker overrides
	envInt("WORKER_CONFIG_FD", &cfg.Worker.ConfigFD)
	envDuration("WORKER_PARENT_POLL_INTERVAL", &cfg.Worker.ParentPollInterval)

	// Proxy overrides
	envDuration("PROXY_HANDSHAKE_TIMEOUT", &cfg.Proxy.HandshakeTimeout)
	envDuration("PROXY_DIAL_TIMEOUT", &cfg.Proxy.DialTimeout)
	envInt("PROXY_BUFFER_SIZE", &cfg.Proxy.BufferSize)
	envDuration("PROXY_DRAIN_TIMEOUT", &cfg.Proxy.DrainTimeout)
	envDuration("PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	envDuration("PROXY_HALF_CLOSE_TIMEOUT", &cfg.Proxy.HalfCloseTimeout)

	// Admin overrides
	envString("ADMIN_LISTEN_ADDRESS", &cfg.Admin.ListenAddress)
	envBool("ADMIN_ACCESS_LOG", &cfg.Admin.AccessLog)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_HEALTH_ENABLED", &cfg.Telemetry.Health.Enabled)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}

	// Certificate monitor overrides
	if val := os.Getenv(EnvPrefix + "CERT_MONITOR_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.CertMonitor.Enabled = &b
		}
	}
	envString("CERT_MONITOR_SCHEDULE", &cfg.CertMonitor.Schedule)
	envInt("CERT_MONITOR_WARN_DAYS", &cfg.CertMonitor.WarnDays)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
