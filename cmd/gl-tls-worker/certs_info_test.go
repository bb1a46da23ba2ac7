package main

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"globaleaks/tlsworker/internal/testcerts"
)

func TestPrintCertText(t *testing.T) {
	b := testcerts.NewBundle(t)

	tests := []struct {
		name     string
		warnDays int
		at       time.Time
		want     []string
		notWant  []string
	}{
		{
			name:     "valid",
			warnDays: 7,
			want: []string{
				"Common Name (CN): localhost",
				"Common Name (CN): Test Intermediate CA",
				"days remaining",
				"- DNS: localhost",
				"- IP: 127.0.0.1",
				"Self-Signed: false",
			},
			notWant: []string{"Warning", "EXPIRED"},
		},
		{
			name:     "expiring soon",
			warnDays: 60,
			want:     []string{"✓ Valid", "Warning: ⚠  certificate expires in"},
		},
		{
			name:     "expired",
			warnDays: 30,
			at:       b.Leaf.NotAfter.Add(time.Hour),
			want:     []string{"✗ EXPIRED on"},
			notWant:  []string{"✓ Valid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.at.IsZero() {
				at := tt.at
				now = func() time.Time { return at }
				defer func() { now = time.Now }()
			}

			var out bytes.Buffer
			if err := printCertText(&out, b.Leaf, "server.crt", tt.warnDays); err != nil {
				t.Fatalf("printCertText() error = %v", err)
			}

			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
			for _, unwanted := range tt.notWant {
				if strings.Contains(out.String(), unwanted) {
					t.Errorf("output contains %q:\n%s", unwanted, out.String())
				}
			}
		})
	}
}

func TestPrintCertJSON(t *testing.T) {
	b := testcerts.NewBundle(t)

	var out bytes.Buffer
	if err := printCertJSON(&out, b.Leaf, 60); err != nil {
		t.Fatalf("printCertJSON() error = %v", err)
	}

	var got struct {
		Subject       string   `json:"subject"`
		IPAddresses   []string `json:"ip_addresses"`
		DaysRemaining int      `json:"days_remaining"`
		Expired       bool     `json:"expired"`
		Warning       string   `json:"warning"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}

	if !strings.Contains(got.Subject, "localhost") {
		t.Errorf("subject = %q", got.Subject)
	}
	if len(got.IPAddresses) != 1 || got.IPAddresses[0] != "127.0.0.1" {
		t.Errorf("ip_addresses = %v", got.IPAddresses)
	}
	if got.DaysRemaining < 29 || got.DaysRemaining > 30 {
		t.Errorf("days_remaining = %d, want 29 or 30", got.DaysRemaining)
	}
	if got.Expired {
		t.Error("expired = true")
	}
	if got.Warning == "" {
		t.Error("warning empty with 60 warn days")
	}
}

func TestDisplayCertInfoReadsChainFile(t *testing.T) {
	b := testcerts.NewBundle(t)
	path := filepath.Join(t.TempDir(), "chain.pem")
	if err := os.WriteFile(path, []byte(b.CertPEM+b.IntermediatePEM), 0o600); err != nil {
		t.Fatal(err)
	}

	orig := infoFlags
	defer func() { infoFlags = orig }()
	infoFlags.format = "text"
	infoFlags.warnDays = 30

	var out bytes.Buffer
	certsInfoCmd.SetOut(&out)
	defer certsInfoCmd.SetOut(nil)

	if err := displayCertInfo(certsInfoCmd, []string{path}); err != nil {
		t.Fatalf("displayCertInfo() error = %v", err)
	}
	if !strings.Contains(out.String(), "Common Name (CN): localhost") {
		t.Errorf("leaf not shown:\n%s", out.String())
	}

	if err := displayCertInfo(certsInfoCmd, []string{filepath.Join(t.TempDir(), "missing.pem")}); err == nil {
		t.Error("displayCertInfo() on a missing file error = nil")
	}
}

func TestGetKeyUsages(t *testing.T) {
	if got := getKeyUsages(0); len(got) != 0 {
		t.Errorf("getKeyUsages(0) = %v", got)
	}

	got := getKeyUsages(x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign)
	want := []string{"Digital Signature", "Certificate Sign"}
	if !slices.Equal(got, want) {
		t.Errorf("getKeyUsages() = %v, want %v", got, want)
	}

	if got := getExtKeyUsage(x509.ExtKeyUsageServerAuth); got != "Server Authentication" {
		t.Errorf("getExtKeyUsage(ServerAuth) = %q", got)
	}
}
