package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"globaleaks/tlsworker/pkg/worker"
)

// ErrNotValidated is returned when a context is requested for material
// that did not pass validation.
var ErrNotValidated = errors.New("refusing to build TLS context from unvalidated material")

// Material is the PEM-encoded server identity.
type Material struct {
	Key          string
	Cert         string
	Intermediate string
	DH           string
}

// MaterialFromConfig extracts the identity from the worker configuration.
func MaterialFromConfig(cfg *worker.Config) Material {
	return Material{
		Key:          cfg.SSLKey,
		Cert:         cfg.SSLCert,
		Intermediate: cfg.SSLIntermediate,
		DH:           cfg.SSLDH,
	}
}

// ServerContext is the immutable TLS server identity and policy shared by
// every listener and connection.
type ServerContext struct {
	config *tls.Config
	leaf   *x509.Certificate
	dh     *DHParams
}

// TLSConfig returns the shared configuration. Callers must not modify it;
// use Clone for a private variant.
func (c *ServerContext) TLSConfig() *tls.Config {
	return c.config
}

// Leaf returns the server certificate.
func (c *ServerContext) Leaf() *x509.Certificate {
	return c.leaf
}

// DH returns the Diffie-Hellman parameters supplied with the identity.
// crypto/tls implements no finite-field DHE suites, so they are retained
// for diagnostics only; key exchange uses ECDHE.
func (c *ServerContext) DH() *DHParams {
	return c.dh
}

// NewServerContext builds the server context from validated material.
// Equal material yields equivalent policies.
func NewServerContext(res ValidationResult, m Material) (*ServerContext, error) {
	if !res.OK {
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotValidated, res.Err)
		}
		return nil, ErrNotValidated
	}

	chainPEM := m.Cert
	if strings.TrimSpace(m.Intermediate) != "" {
		chainPEM = strings.TrimRight(m.Cert, "\n") + "\n" + m.Intermediate
	}

	cert, err := tls.X509KeyPair([]byte(chainPEM), []byte(m.Key))
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}

	leaf := cert.Leaf
	if leaf == nil {
		leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse leaf certificate: %w", err)
		}
		cert.Leaf = leaf
	}

	dh, err := ParseDHParams([]byte(m.DH))
	if err != nil {
		return nil, err
	}

	return &ServerContext{
		config: serverPolicy(cert),
		leaf:   leaf,
		dh:     dh,
	}, nil
}

// serverPolicy is the fixed protocol and cipher policy.
func serverPolicy(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:     []tls.Certificate{cert},
		MinVersion:       tls.VersionTLS12,
		MaxVersion:       tls.VersionTLS13,
		CipherSuites:     parseCipherSuites(DefaultCipherSuites),
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256, tls.CurveP384},
		// Session tickets stay enabled; crypto/tls rotates the ticket keys.
		SessionTicketsDisabled: false,
	}
}

// DefaultCipherSuites lists the TLS 1.2 suites offered, strongest first.
// All use ECDHE key exchange and AEAD encryption. TLS 1.3 suites are not
// configurable in crypto/tls and are always enabled.
var DefaultCipherSuites = []string{
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305",
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305",
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
}

// parseCipherSuites converts cipher suite names to tls constants.
// Unknown names are skipped.
func parseCipherSuites(names []string) []uint16 {
	var suites []uint16
	for _, name := range names {
		if id, ok := cipherSuiteMap[name]; ok {
			suites = append(suites, id)
		}
	}
	return suites
}

// cipherSuiteMap maps cipher suite names to their tls package constants.
// Only forward-secret AEAD suites are included.
var cipherSuiteMap = map[string]uint16{
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}

// VersionName returns a readable TLS version.
func VersionName(v uint16) string {
	switch v {
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return fmt.Sprintf("0x%04x", v)
	}
}
