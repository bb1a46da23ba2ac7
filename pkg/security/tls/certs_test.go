package tls

import (
	"crypto/x509"
	"errors"
	"strings"
	"testing"
	"time"

	"globaleaks/tlsworker/internal/testcerts"
)

func x509CertPool() *x509.CertPool {
	return x509.NewCertPool()
}

func TestParseCertificates(t *testing.T) {
	bundle := testcerts.NewBundle(t)

	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{name: "single", data: bundle.CertPEM, want: 1},
		{name: "chain", data: testcerts.Join(bundle.CertPEM, bundle.IntermediatePEM), want: 2},
		{name: "key blocks skipped", data: testcerts.Join(bundle.KeyPEM, bundle.CertPEM), want: 1},
		{name: "empty", data: "", wantErr: true},
		{name: "only a key", data: bundle.KeyPEM, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certs, err := ParseCertificates([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(certs) != tt.want {
				t.Errorf("got %d certificates, want %d", len(certs), tt.want)
			}
		})
	}
}

func TestParseLeaf_FirstCertificate(t *testing.T) {
	bundle := testcerts.NewBundle(t)

	leaf, err := ParseLeaf([]byte(testcerts.Join(bundle.CertPEM, bundle.IntermediatePEM)))
	if err != nil {
		t.Fatalf("ParseLeaf() error = %v", err)
	}
	if leaf.Subject.CommonName != "localhost" {
		t.Errorf("leaf CN = %q, want localhost", leaf.Subject.CommonName)
	}

	if _, err := ParseLeaf(nil); !errors.Is(err, ErrNoCertificate) {
		t.Errorf("ParseLeaf(nil) error = %v, want ErrNoCertificate", err)
	}
}

func TestValidateX509Certificate(t *testing.T) {
	bundle := testcerts.NewBundle(t)
	cert := bundle.Leaf

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{name: "inside window", now: time.Now()},
		{name: "before not_before", now: cert.NotBefore.Add(-time.Second), wantErr: ErrCertNotYetValid},
		{name: "after not_after", now: cert.NotAfter.Add(time.Second), wantErr: ErrCertExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateX509Certificate(cert, tt.now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateX509Certificate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckCertificateExpiration(t *testing.T) {
	bundle := testcerts.NewBundle(t)
	cert := bundle.Leaf

	tests := []struct {
		name        string
		now         time.Time
		warnDays    int
		wantWarning string
	}{
		{name: "plenty of time", now: cert.NotAfter.Add(-60 * 24 * time.Hour), warnDays: 30},
		{name: "inside warning window", now: cert.NotAfter.Add(-10 * 24 * time.Hour), warnDays: 30, wantWarning: "expires in"},
		{name: "expired", now: cert.NotAfter.Add(time.Hour), warnDays: 30, wantWarning: "expired on"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, warning := CheckCertificateExpiration(cert, tt.now, tt.warnDays)
			if tt.wantWarning == "" && warning != "" {
				t.Errorf("unexpected warning %q", warning)
			}
			if tt.wantWarning != "" && !strings.Contains(warning, tt.wantWarning) {
				t.Errorf("warning = %q, want it to contain %q", warning, tt.wantWarning)
			}
		})
	}
}

func TestExtractCertificateInfo(t *testing.T) {
	bundle := testcerts.NewBundle(t)

	info := ExtractCertificateInfo(bundle.Leaf)
	if !strings.Contains(info.Subject, "localhost") {
		t.Errorf("Subject = %q", info.Subject)
	}
	if !strings.Contains(info.Issuer, "Test Intermediate CA") {
		t.Errorf("Issuer = %q", info.Issuer)
	}
	if info.IsCA || info.SelfSigned {
		t.Errorf("leaf reported IsCA=%v SelfSigned=%v", info.IsCA, info.SelfSigned)
	}
	if len(info.IPAddresses) != 1 || info.IPAddresses[0] != "127.0.0.1" {
		t.Errorf("IPAddresses = %v", info.IPAddresses)
	}

	root := ExtractCertificateInfo(bundle.Root.Cert)
	if !root.IsCA || !root.SelfSigned {
		t.Errorf("root reported IsCA=%v SelfSigned=%v", root.IsCA, root.SelfSigned)
	}
}
