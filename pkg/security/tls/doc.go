/*
Package tls validates the server identity handed to the worker and builds
the TLS context shared by every listener.

# Validation

ChainValidator checks, in order and stopping at the first failure, that the
private key matches the leaf, that the leaf is currently valid, that the
intermediates chain it to a trusted root and that the DH parameters carry a
prime of at least MinDHBits:

	res := tls.NewChainValidator().Validate(cfg, false)
	if !res.OK {
		return res.Err // wraps ErrKeyMismatch, ErrCertExpired, ...
	}

The relaxed flag accepts a bare leaf and self-signed or staging chains. The
worker never sets it; the offline validate command exposes it.

# Server Context

NewServerContext refuses a failed ValidationResult. The resulting policy is
TLS 1.2 minimum, ECDHE with AEAD ciphers only, X25519/P-256/P-384 curves,
and session tickets enabled:

	sc, err := tls.NewServerContext(res, tls.MaterialFromConfig(cfg))
	ln := tls.NewListener(inner, sc.TLSConfig())

The returned configuration is never modified after construction.

# Expiry Monitoring

Monitor checks the leaf on a cron schedule and reports the remaining days:

	m := tls.NewMonitor(sc.Leaf(), tls.MonitorConfig{Schedule: "@every 12h", WarnDays: 30}, collector, logger)
	_ = m.Start()
	defer m.Stop()
*/
package tls
