package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"time"

	"globaleaks/tlsworker/pkg/worker"
)

// Validation failures. Each ValidationResult error wraps exactly one.
var (
	ErrInvalidCertificate  = errors.New("certificate cannot be parsed")
	ErrKeyMismatch         = errors.New("private key does not match certificate")
	ErrCertNotYetValid     = errors.New("certificate is not yet valid")
	ErrCertExpired         = errors.New("certificate has expired")
	ErrMissingIntermediate = errors.New("intermediate certificate chain is required")
	ErrInvalidIntermediate = errors.New("intermediate chain cannot be parsed")
	ErrUntrustedChain      = errors.New("certificate chain does not lead to a trusted root")
	ErrInvalidDHParams     = errors.New("invalid DH parameters")
	ErrWeakDHParams        = errors.New("DH parameters are too weak")
)

// ValidationResult is the outcome of ChainValidator.Validate.
// Err is non-nil exactly when OK is false.
type ValidationResult struct {
	OK  bool
	Err error
}

func pass() ValidationResult {
	return ValidationResult{OK: true}
}

func fail(err error) ValidationResult {
	return ValidationResult{OK: false, Err: err}
}

// ChainValidator checks that key, certificate, intermediates and DH
// parameters form a coherent, currently valid server identity.
// It holds no mutable state and is safe for concurrent use.
type ChainValidator struct {
	roots     *x509.CertPool
	now       func() time.Time
	minDHBits int
}

// ValidatorOption configures a ChainValidator.
type ValidatorOption func(*ChainValidator)

// WithRoots sets the trusted roots. The system pool is used otherwise.
func WithRoots(pool *x509.CertPool) ValidatorOption {
	return func(v *ChainValidator) { v.roots = pool }
}

// WithClock sets the time source used for validity checks.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *ChainValidator) { v.now = now }
}

// WithMinDHBits overrides MinDHBits.
func WithMinDHBits(bits int) ValidatorOption {
	return func(v *ChainValidator) { v.minDHBits = bits }
}

// NewChainValidator creates a validator.
func NewChainValidator(opts ...ValidatorOption) *ChainValidator {
	v := &ChainValidator{
		now:       time.Now,
		minDHBits: MinDHBits,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the checks in order and stops at the first failure:
//
//  1. the private key matches the leaf certificate
//  2. the leaf is inside its validity window
//  3. the intermediates chain the leaf to a trusted root
//  4. the DH parameters are strong enough
//
// relaxed permits a missing intermediate and self-signed or staging
// chains. The worker always validates with relaxed set to false.
func (v *ChainValidator) Validate(cfg *worker.Config, relaxed bool) ValidationResult {
	if cfg == nil {
		return fail(errors.New("configuration is nil"))
	}

	leaf, err := v.checkKeyPair(cfg)
	if err != nil {
		return fail(err)
	}

	if err := ValidateX509Certificate(leaf, v.now()); err != nil {
		return fail(err)
	}

	if err := v.checkChain(leaf, cfg.SSLIntermediate, relaxed); err != nil {
		return fail(err)
	}

	params, err := ParseDHParams([]byte(cfg.SSLDH))
	if err != nil {
		return fail(err)
	}
	if err := CheckDHParams(params, v.minDHBits); err != nil {
		return fail(err)
	}

	return pass()
}

func (v *ChainValidator) checkKeyPair(cfg *worker.Config) (*x509.Certificate, error) {
	leaf, err := ParseLeaf([]byte(cfg.SSLCert))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}

	if _, err := tls.X509KeyPair([]byte(cfg.SSLCert), []byte(cfg.SSLKey)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}

	return leaf, nil
}

func (v *ChainValidator) checkChain(leaf *x509.Certificate, intermediatePEM string, relaxed bool) error {
	var chain []*x509.Certificate
	if strings.TrimSpace(intermediatePEM) != "" {
		certs, err := ParseCertificates([]byte(intermediatePEM))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidIntermediate, err)
		}
		chain = certs
	}

	if len(chain) == 0 && !relaxed {
		return ErrMissingIntermediate
	}

	roots, err := v.rootPool()
	if err != nil {
		return err
	}

	intermediates := x509.NewCertPool()
	for _, cert := range chain {
		intermediates.AddCert(cert)
	}

	if relaxed {
		roots = roots.Clone()
		for _, cert := range chain {
			if cert.IsCA {
				roots.AddCert(cert)
			}
		}
		if isSelfSigned(leaf) {
			roots.AddCert(leaf)
		}
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   v.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if _, err := leaf.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrUntrustedChain, err)
	}

	return nil
}

func (v *ChainValidator) rootPool() (*x509.CertPool, error) {
	if v.roots != nil {
		return v.roots, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		return nil, fmt.Errorf("failed to load system roots: %w", err)
	}
	return pool, nil
}
