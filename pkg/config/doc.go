// Package config provides runtime settings management for the TLS worker.
//
// The settings tune how the worker runs: timeouts, buffer sizes, logging,
// the loopback admin endpoint and the certificate monitor. Certificate
// material and listening descriptors are not settings; they arrive once from
// the supervisor on the configuration descriptor (see package worker).
//
// # Configuration Loading
//
// Settings can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("settings.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("settings.yaml")
//
// An empty path yields the defaults, so the worker runs without any file.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention GL_TLS_WORKER_SECTION_FIELD:
//
//   - GL_TLS_WORKER_PROXY_DIAL_TIMEOUT overrides proxy.dial_timeout
//   - GL_TLS_WORKER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - GL_TLS_WORKER_ADMIN_LISTEN_ADDRESS overrides admin.listen_address
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validation collects every failed rule:
//
//	configuration validation failed with 2 errors:
//	  - proxy.buffer_size: buffer size 12 out of range: must be between 1024 and 1048576
//	  - admin.listen_address: host "0.0.0.0" is not a loopback address
//
// # Reloading
//
// Watcher observes the settings file with fsnotify. Reloaded settings are
// handed to registered callbacks; the worker applies only the log level at
// runtime; every other field takes effect on the next start.
//
// # Example Configuration
//
//	proxy:
//	  handshake_timeout: 10s
//	  dial_timeout: 5s
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//	  metrics:
//	    enabled: true
//	admin:
//	  listen_address: 127.0.0.1:9464
//	cert_monitor:
//	  schedule: "@every 12h"
//	  warn_days: 30
package config
