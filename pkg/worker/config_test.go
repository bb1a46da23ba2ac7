package worker

import (
	"errors"
	"strings"
	"testing"
)

const validDocument = `{
	"proxy_ip": "127.0.0.1",
	"proxy_port": 8082,
	"ssl_key": "KEY",
	"ssl_cert": "CERT",
	"ssl_intermediate": "",
	"ssl_dh": "DH",
	"tls_socket_fds": [5, 6]
}`

func TestParseConfig_Valid(t *testing.T) {
	cfg, err := ParseConfig([]byte(validDocument))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.ProxyIP != "127.0.0.1" {
		t.Errorf("ProxyIP = %q", cfg.ProxyIP)
	}
	if cfg.ProxyPort != 8082 {
		t.Errorf("ProxyPort = %d", cfg.ProxyPort)
	}
	if got := cfg.FDs(); len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Errorf("FDs() = %v", got)
	}
	if cfg.BackendAddr() != "127.0.0.1:8082" {
		t.Errorf("BackendAddr() = %q", cfg.BackendAddr())
	}
}

func TestParseConfig_PortAsString(t *testing.T) {
	doc := strings.Replace(validDocument, "8082", `"8082"`, 1)
	cfg, err := ParseConfig([]byte(doc))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.ProxyPort != 8082 {
		t.Errorf("ProxyPort = %d, want 8082", cfg.ProxyPort)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "empty", doc: "", wantErr: "empty"},
		{name: "not json", doc: "proxy_ip=127.0.0.1", wantErr: "not valid JSON"},
		{name: "array", doc: "[1,2]", wantErr: "not valid JSON"},
		{name: "trailing data", doc: validDocument + "{}", wantErr: "trailing data"},
		{
			name:    "missing fields",
			doc:     `{"proxy_ip": "127.0.0.1"}`,
			wantErr: "ssl_key: field is required",
		},
		{
			name:    "null field",
			doc:     strings.Replace(validDocument, `"DH"`, "null", 1),
			wantErr: "ssl_dh: field is required",
		},
		{
			name:    "port out of range",
			doc:     strings.Replace(validDocument, "8082", "70000", 1),
			wantErr: "proxy_port",
		},
		{
			name:    "port not numeric",
			doc:     strings.Replace(validDocument, "8082", `"http"`, 1),
			wantErr: "invalid port",
		},
		{
			name:    "no descriptors",
			doc:     strings.Replace(validDocument, "[5, 6]", "[]", 1),
			wantErr: "tls_socket_fds",
		},
		{
			name:    "duplicate descriptor",
			doc:     strings.Replace(validDocument, "[5, 6]", "[5, 5]", 1),
			wantErr: "duplicate descriptor 5",
		},
		{
			name:    "negative descriptor",
			doc:     strings.Replace(validDocument, "[5, 6]", "[-1]", 1),
			wantErr: "invalid descriptor -1",
		},
		{
			name:    "blank key",
			doc:     strings.Replace(validDocument, `"KEY"`, `"  "`, 1),
			wantErr: "private key is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseConfig_MissingFieldsReportedTogether(t *testing.T) {
	_, err := ParseConfig([]byte(`{"proxy_ip": "127.0.0.1", "proxy_port": 80}`))

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if len(verr.Errors) != 5 {
		t.Errorf("expected 5 missing fields, got %d: %v", len(verr.Errors), verr.Errors)
	}
}

func TestCheckLoopback(t *testing.T) {
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"127.0.0.1", false},
		{"localhost", false},
		{"127.0.0.2", true},
		{"::1", true},
		{"10.0.0.1", true},
		{"example.org", true},
		{"LOCALHOST", true},
		{"localhost.", true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg := &Config{ProxyIP: tt.host, ProxyPort: 8082}
			err := cfg.CheckLoopback()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckLoopback(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrExternalProxyTarget) {
				t.Errorf("expected ErrExternalProxyTarget, got %v", err)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg, err := ParseConfig([]byte(validDocument))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	r := cfg.Redacted()
	if strings.Contains(r.SSLKey, "KEY") {
		t.Errorf("key not redacted: %q", r.SSLKey)
	}
	if cfg.SSLKey != "KEY" {
		t.Error("Redacted() modified the original")
	}
	r.TLSSocketFDs[0] = 99
	if cfg.TLSSocketFDs[0] != 5 {
		t.Error("Redacted() shares the descriptor slice")
	}
}
