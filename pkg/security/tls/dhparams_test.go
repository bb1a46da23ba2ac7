package tls

import (
	"encoding/pem"
	"errors"
	"math/big"
	"testing"

	"globaleaks/tlsworker/internal/testcerts"
)

func TestParseDHParams(t *testing.T) {
	valid := testcerts.DHParamsPEM(t, 2048)

	params, err := ParseDHParams([]byte(valid))
	if err != nil {
		t.Fatalf("ParseDHParams() error = %v", err)
	}
	if params.BitLen() != 2048 {
		t.Errorf("BitLen() = %d, want 2048", params.BitLen())
	}
	if params.G.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("G = %v, want 2", params.G)
	}

	wrongType := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0x30, 0x00}}))
	badDER := string(pem.EncodeToMemory(&pem.Block{Type: "DH PARAMETERS", Bytes: []byte{0x01, 0x02}}))

	for name, data := range map[string]string{
		"empty":      "",
		"not pem":    "garbage",
		"wrong type": wrongType,
		"bad der":    badDER,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseDHParams([]byte(data)); !errors.Is(err, ErrInvalidDHParams) {
				t.Errorf("ParseDHParams() error = %v, want ErrInvalidDHParams", err)
			}
		})
	}
}

func TestCheckDHParams(t *testing.T) {
	strong, err := ParseDHParams([]byte(testcerts.DHParamsPEM(t, 2048)))
	if err != nil {
		t.Fatalf("ParseDHParams() error = %v", err)
	}
	weak, err := ParseDHParams([]byte(testcerts.DHParamsPEM(t, 1024)))
	if err != nil {
		t.Fatalf("ParseDHParams() error = %v", err)
	}

	tests := []struct {
		name    string
		params  *DHParams
		minBits int
		wantErr error
	}{
		{name: "strong", params: strong, minBits: MinDHBits},
		{name: "weak", params: weak, minBits: MinDHBits, wantErr: ErrWeakDHParams},
		{name: "weak accepted with lower floor", params: weak, minBits: 1024},
		{name: "generator one", params: &DHParams{P: strong.P, G: big.NewInt(1)}, minBits: MinDHBits, wantErr: ErrInvalidDHParams},
		{
			name:    "generator p-1",
			params:  &DHParams{P: strong.P, G: new(big.Int).Sub(strong.P, big.NewInt(1))},
			minBits: MinDHBits,
			wantErr: ErrInvalidDHParams,
		},
		{
			name:    "composite modulus",
			params:  &DHParams{P: new(big.Int).Add(strong.P, big.NewInt(1)), G: big.NewInt(2)},
			minBits: MinDHBits,
			wantErr: ErrInvalidDHParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDHParams(tt.params, tt.minBits)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckDHParams() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
