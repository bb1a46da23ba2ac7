// Package logging provides structured logging with secret redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - JSON, text, and console output
//   - Redaction of PEM private keys and other secrets
//   - Connection-aware logging with connection IDs and addresses
//   - A level that can be changed while the worker runs
//
// Every record carries component=gl-tls-worker and the process id.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:         "info",
//	    Format:        "json",
//	    RedactSecrets: true,
//	})
//
//	logger.Info("TLS proxy listening", "fd", 5, "addr", "0.0.0.0:443")
//
//	ctx = logging.WithConnID(ctx, id)
//	logger.InfoContext(ctx, "Handshake failed", "error", err)
//
// # Redaction
//
// With RedactSecrets enabled:
//
//   - PEM private key blocks in any string become [REDACTED PRIVATE KEY]
//   - values under keys such as ssl_key, private_key or secret become ***
//   - control characters are escaped so a record stays on one line
package logging
