package tls

import (
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
)

// MinDHBits is the smallest accepted Diffie-Hellman prime.
const MinDHBits = 2048

// DHParams are finite-field Diffie-Hellman group parameters.
type DHParams struct {
	P *big.Int
	G *big.Int
}

// BitLen returns the size of the prime in bits.
func (p *DHParams) BitLen() int {
	return p.P.BitLen()
}

// dhParamsASN1 is the PKCS #3 DHParameter structure.
type dhParamsASN1 struct {
	P                  *big.Int
	G                  *big.Int
	PrivateValueLength int `asn1:"optional"`
}

// ParseDHParams decodes a PEM "DH PARAMETERS" block.
func ParseDHParams(data []byte) (*DHParams, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidDHParams)
	}
	if block.Type != "DH PARAMETERS" {
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidDHParams, block.Type)
	}

	var raw dhParamsASN1
	rest, err := asn1.Unmarshal(block.Bytes, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDHParams, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: trailing data after parameters", ErrInvalidDHParams)
	}
	if raw.P == nil || raw.G == nil || raw.P.Sign() <= 0 {
		return nil, fmt.Errorf("%w: missing prime or generator", ErrInvalidDHParams)
	}

	return &DHParams{P: raw.P, G: raw.G}, nil
}

// CheckDHParams enforces a minimum prime size and sane group values.
func CheckDHParams(p *DHParams, minBits int) error {
	if bits := p.BitLen(); bits < minBits {
		return fmt.Errorf("%w: prime is %d bits, need at least %d", ErrWeakDHParams, bits, minBits)
	}

	// 1 < g < p-1
	pMinus1 := new(big.Int).Sub(p.P, big.NewInt(1))
	if p.G.Cmp(big.NewInt(1)) <= 0 || p.G.Cmp(pMinus1) >= 0 {
		return fmt.Errorf("%w: generator out of range", ErrInvalidDHParams)
	}
	if !p.P.ProbablyPrime(20) {
		return fmt.Errorf("%w: modulus is not prime", ErrInvalidDHParams)
	}

	return nil
}
