package tls

import (
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"testing"
	"time"

	"globaleaks/tlsworker/internal/testcerts"
	"globaleaks/tlsworker/pkg/worker"
)

func configFor(b *testcerts.Bundle) *worker.Config {
	return &worker.Config{
		ProxyIP:         "127.0.0.1",
		ProxyPort:       8082,
		SSLKey:          b.KeyPEM,
		SSLCert:         b.CertPEM,
		SSLIntermediate: b.IntermediatePEM,
		SSLDH:           b.DHPEM,
		TLSSocketFDs:    []int{5},
	}
}

func leafOptions(notBefore, notAfter time.Time) testcerts.Options {
	return testcerts.Options{
		CommonName: "localhost",
		NotBefore:  notBefore,
		NotAfter:   notAfter,
		DNSNames:   []string{"localhost"},
		IPs:        []net.IP{net.ParseIP("127.0.0.1")},
	}
}

func compositeDHPEM(t *testing.T) string {
	t.Helper()

	// 2^2048 - 1 is divisible by 3.
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 2048), big.NewInt(1))
	der, err := asn1.Marshal(struct {
		P *big.Int
		G *big.Int
	}{P: p, G: big.NewInt(2)})
	if err != nil {
		t.Fatalf("asn1.Marshal() error = %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "DH PARAMETERS", Bytes: der}))
}

func TestChainValidator_Validate(t *testing.T) {
	bundle := testcerts.NewBundle(t)
	now := time.Now()

	tests := []struct {
		name    string
		mutate  func(cfg *worker.Config)
		relaxed bool
		wantErr error
	}{
		{
			name:   "valid chain",
			mutate: func(cfg *worker.Config) {},
		},
		{
			name:    "valid chain relaxed",
			mutate:  func(cfg *worker.Config) {},
			relaxed: true,
		},
		{
			name:    "unparseable certificate",
			mutate:  func(cfg *worker.Config) { cfg.SSLCert = "not a certificate" },
			wantErr: ErrInvalidCertificate,
		},
		{
			name:    "key does not match certificate",
			mutate:  func(cfg *worker.Config) { cfg.SSLKey = testcerts.KeyPEM(t) },
			wantErr: ErrKeyMismatch,
		},
		{
			name:    "missing intermediate strict",
			mutate:  func(cfg *worker.Config) { cfg.SSLIntermediate = "" },
			wantErr: ErrMissingIntermediate,
		},
		{
			name:    "missing intermediate relaxed still needs a path to a root",
			mutate:  func(cfg *worker.Config) { cfg.SSLIntermediate = "" },
			relaxed: true,
			wantErr: ErrUntrustedChain,
		},
		{
			name:    "garbage intermediate",
			mutate:  func(cfg *worker.Config) { cfg.SSLIntermediate = "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n" },
			wantErr: ErrInvalidIntermediate,
		},
		{
			name: "intermediate from another authority",
			mutate: func(cfg *worker.Config) {
				other := testcerts.NewRoot(t, "Other Root").NewIntermediate(t, "Other Intermediate")
				cfg.SSLIntermediate = other.PEM
			},
			wantErr: ErrUntrustedChain,
		},
		{
			name:    "weak DH parameters",
			mutate:  func(cfg *worker.Config) { cfg.SSLDH = testcerts.DHParamsPEM(t, 1024) },
			wantErr: ErrWeakDHParams,
		},
		{
			name:    "DH parameters not PEM",
			mutate:  func(cfg *worker.Config) { cfg.SSLDH = "garbage" },
			wantErr: ErrInvalidDHParams,
		},
		{
			name:    "DH modulus not prime",
			mutate:  func(cfg *worker.Config) { cfg.SSLDH = compositeDHPEM(t) },
			wantErr: ErrInvalidDHParams,
		},
	}

	v := NewChainValidator(WithRoots(bundle.Roots()), WithClock(func() time.Time { return now }))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := configFor(bundle)
			tt.mutate(cfg)

			res := v.Validate(cfg, tt.relaxed)

			if tt.wantErr == nil {
				if !res.OK || res.Err != nil {
					t.Fatalf("Validate() = %+v, want OK", res)
				}
				return
			}
			if res.OK {
				t.Fatalf("Validate() OK, want %v", tt.wantErr)
			}
			if !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", res.Err, tt.wantErr)
			}
		})
	}
}

func TestChainValidator_ValidityWindow(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		leaf    testcerts.Options
		wantErr error
	}{
		{
			name:    "expired",
			leaf:    leafOptions(now.Add(-48*time.Hour), now.Add(-time.Hour)),
			wantErr: ErrCertExpired,
		},
		{
			name:    "not yet valid",
			leaf:    leafOptions(now.Add(time.Hour), now.Add(48*time.Hour)),
			wantErr: ErrCertNotYetValid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := testcerts.NewBundleWithLeaf(t, tt.leaf)
			v := NewChainValidator(WithRoots(bundle.Roots()))

			res := v.Validate(configFor(bundle), false)
			if res.OK || !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Validate() = %+v, want %v", res, tt.wantErr)
			}
		})
	}
}

func TestChainValidator_ClockMovesPastExpiry(t *testing.T) {
	bundle := testcerts.NewBundle(t)
	later := bundle.Leaf.NotAfter.Add(time.Minute)

	v := NewChainValidator(WithRoots(bundle.Roots()), WithClock(func() time.Time { return later }))
	res := v.Validate(configFor(bundle), false)
	if !errors.Is(res.Err, ErrCertExpired) {
		t.Errorf("Validate() error = %v, want ErrCertExpired", res.Err)
	}
}

func TestChainValidator_MismatchReportedBeforeExpiry(t *testing.T) {
	now := time.Now()
	bundle := testcerts.NewBundleWithLeaf(t, leafOptions(now.Add(-48*time.Hour), now.Add(-time.Hour)))

	cfg := configFor(bundle)
	cfg.SSLKey = testcerts.KeyPEM(t)

	res := NewChainValidator(WithRoots(bundle.Roots())).Validate(cfg, false)
	if !errors.Is(res.Err, ErrKeyMismatch) {
		t.Errorf("Validate() error = %v, want ErrKeyMismatch", res.Err)
	}
	if errors.Is(res.Err, ErrCertExpired) {
		t.Errorf("Validate() reported expiry alongside mismatch: %v", res.Err)
	}
}

func TestChainValidator_SelfSigned(t *testing.T) {
	now := time.Now()
	certPEM, keyPEM := testcerts.SelfSigned(t, leafOptions(now.Add(-time.Hour), now.Add(24*time.Hour)))

	cfg := &worker.Config{
		ProxyIP:      "127.0.0.1",
		ProxyPort:    8082,
		SSLKey:       keyPEM,
		SSLCert:      certPEM,
		SSLDH:        testcerts.DHParamsPEM(t, 2048),
		TLSSocketFDs: []int{5},
	}
	v := NewChainValidator(WithRoots(x509CertPool()))

	if res := v.Validate(cfg, false); res.OK {
		t.Error("strict Validate() accepted a self-signed leaf")
	}
	if res := v.Validate(cfg, true); !res.OK {
		t.Errorf("relaxed Validate() = %v, want OK", res.Err)
	}
}

func TestChainValidator_StagingChainRelaxed(t *testing.T) {
	bundle := testcerts.NewBundle(t)
	v := NewChainValidator(WithRoots(x509CertPool()))

	if res := v.Validate(configFor(bundle), false); !errors.Is(res.Err, ErrUntrustedChain) {
		t.Errorf("strict Validate() error = %v, want ErrUntrustedChain", res.Err)
	}
	if res := v.Validate(configFor(bundle), true); !res.OK {
		t.Errorf("relaxed Validate() = %v, want OK", res.Err)
	}
}

func TestChainValidator_NilConfig(t *testing.T) {
	res := NewChainValidator().Validate(nil, false)
	if res.OK || res.Err == nil {
		t.Errorf("Validate(nil) = %+v, want failure", res)
	}
}

func TestChainValidator_Deterministic(t *testing.T) {
	bundle := testcerts.NewBundle(t)
	cfg := configFor(bundle)
	cfg.SSLDH = testcerts.DHParamsPEM(t, 1024)
	v := NewChainValidator(WithRoots(bundle.Roots()))

	first := v.Validate(cfg, false)
	for i := 0; i < 3; i++ {
		again := v.Validate(cfg, false)
		if again.OK != first.OK || again.Err.Error() != first.Err.Error() {
			t.Fatalf("Validate() run %d = %v, want %v", i, again.Err, first.Err)
		}
	}
}
