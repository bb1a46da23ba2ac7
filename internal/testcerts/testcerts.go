// Package testcerts generates certificate material for tests.
package testcerts

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// Options controls an issued certificate.
type Options struct {
	CommonName string
	NotBefore  time.Time
	NotAfter   time.Time
	IsCA       bool
	DNSNames   []string
	IPs        []net.IP
}

// Authority is a CA able to issue certificates.
type Authority struct {
	Cert *x509.Certificate
	Key  crypto.Signer
	PEM  string
}

// Bundle is the material the supervisor would hand over.
type Bundle struct {
	KeyPEM          string
	CertPEM         string
	IntermediatePEM string
	DHPEM           string

	Root         *Authority
	Intermediate *Authority
	Leaf         *x509.Certificate
}

// Roots returns a pool holding the bundle's root.
func (b *Bundle) Roots() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(b.Root.Cert)
	return pool
}

// JSON returns the worker configuration document for this bundle.
func (b *Bundle) JSON(proxyIP string, proxyPort int, fds []int) []byte {
	doc := map[string]any{
		"proxy_ip":         proxyIP,
		"proxy_port":       proxyPort,
		"ssl_key":          b.KeyPEM,
		"ssl_cert":         b.CertPEM,
		"ssl_intermediate": b.IntermediatePEM,
		"ssl_dh":           b.DHPEM,
		"tls_socket_fds":   fds,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

// NewBundle returns a root, an intermediate and a leaf for 127.0.0.1 and
// localhost, valid from an hour ago for thirty days, plus 2048-bit DH
// parameters.
func NewBundle(tb testing.TB) *Bundle {
	tb.Helper()

	now := time.Now()
	return NewBundleWithLeaf(tb, Options{
		CommonName: "localhost",
		NotBefore:  now.Add(-time.Hour),
		NotAfter:   now.Add(30 * 24 * time.Hour),
		DNSNames:   []string{"localhost"},
		IPs:        []net.IP{net.ParseIP("127.0.0.1")},
	})
}

// NewBundleWithLeaf is NewBundle with a custom leaf.
func NewBundleWithLeaf(tb testing.TB, leaf Options) *Bundle {
	tb.Helper()

	root := NewRoot(tb, "Test Root CA")
	inter := root.NewIntermediate(tb, "Test Intermediate CA")
	certPEM, keyPEM, cert := inter.Issue(tb, leaf)

	return &Bundle{
		KeyPEM:          keyPEM,
		CertPEM:         certPEM,
		IntermediatePEM: inter.PEM,
		DHPEM:           DHParamsPEM(tb, 2048),
		Root:            root,
		Intermediate:    inter,
		Leaf:            cert,
	}
}

// NewRoot creates a self-signed root CA valid for a year.
func NewRoot(tb testing.TB, name string) *Authority {
	tb.Helper()

	key := newKey(tb)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial(tb),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             now.Add(-2 * time.Hour),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		tb.Fatalf("failed to create root: %v", err)
	}
	return newAuthority(tb, der, key)
}

// NewIntermediate issues an intermediate CA signed by a.
func (a *Authority) NewIntermediate(tb testing.TB, name string) *Authority {
	tb.Helper()

	now := time.Now()
	certPEM, _, cert, key := a.issue(tb, Options{
		CommonName: name,
		NotBefore:  now.Add(-2 * time.Hour),
		NotAfter:   now.Add(180 * 24 * time.Hour),
		IsCA:       true,
	})
	return &Authority{Cert: cert, Key: key, PEM: certPEM}
}

// Issue signs a certificate and returns its PEM, its key PEM and the
// parsed certificate.
func (a *Authority) Issue(tb testing.TB, opts Options) (certPEM, keyPEM string, cert *x509.Certificate) {
	tb.Helper()
	certPEM, keyPEM, cert, _ = a.issue(tb, opts)
	return certPEM, keyPEM, cert
}

func (a *Authority) issue(tb testing.TB, opts Options) (string, string, *x509.Certificate, crypto.Signer) {
	tb.Helper()

	key := newKey(tb)
	tmpl := template(tb, opts)

	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.Cert, key.Public(), a.Key)
	if err != nil {
		tb.Fatalf("failed to issue certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		tb.Fatalf("failed to parse issued certificate: %v", err)
	}
	return encodeCert(der), encodeKey(tb, key), cert, key
}

// SelfSigned returns a self-signed leaf and its key.
func SelfSigned(tb testing.TB, opts Options) (certPEM, keyPEM string) {
	tb.Helper()

	key := newKey(tb)
	tmpl := template(tb, opts)

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		tb.Fatalf("failed to create self-signed certificate: %v", err)
	}
	return encodeCert(der), encodeKey(tb, key)
}

// KeyPEM returns a fresh private key unrelated to any certificate.
func KeyPEM(tb testing.TB) string {
	tb.Helper()
	return encodeKey(tb, newKey(tb))
}

var (
	dhMu    sync.Mutex
	dhCache = map[int]string{}
)

// DHParamsPEM returns PEM "DH PARAMETERS" with a random prime of the given
// size and generator 2. Results are cached per size.
func DHParamsPEM(tb testing.TB, bits int) string {
	tb.Helper()

	dhMu.Lock()
	defer dhMu.Unlock()

	if p, ok := dhCache[bits]; ok {
		return p
	}

	prime, err := rand.Prime(rand.Reader, bits)
	if err != nil {
		tb.Fatalf("failed to generate prime: %v", err)
	}
	der, err := asn1.Marshal(struct {
		P *big.Int
		G *big.Int
	}{P: prime, G: big.NewInt(2)})
	if err != nil {
		tb.Fatalf("failed to encode DH parameters: %v", err)
	}

	p := string(pem.EncodeToMemory(&pem.Block{Type: "DH PARAMETERS", Bytes: der}))
	dhCache[bits] = p
	return p
}

// Join concatenates PEM blocks.
func Join(blocks ...string) string {
	return strings.Join(blocks, "")
}

func template(tb testing.TB, opts Options) *x509.Certificate {
	tb.Helper()

	tmpl := &x509.Certificate{
		SerialNumber:          serial(tb),
		Subject:               pkix.Name{CommonName: opts.CommonName},
		NotBefore:             opts.NotBefore,
		NotAfter:              opts.NotAfter,
		DNSNames:              opts.DNSNames,
		IPAddresses:           opts.IPs,
		BasicConstraintsValid: true,
		IsCA:                  opts.IsCA,
	}
	if opts.IsCA {
		tmpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	} else {
		tmpl.KeyUsage = x509.KeyUsageDigitalSignature
		tmpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	}
	return tmpl
}

func newAuthority(tb testing.TB, der []byte, key crypto.Signer) *Authority {
	tb.Helper()

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		tb.Fatalf("failed to parse certificate: %v", err)
	}
	return &Authority{Cert: cert, Key: key, PEM: encodeCert(der)}
}

func newKey(tb testing.TB) crypto.Signer {
	tb.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		tb.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func serial(tb testing.TB) *big.Int {
	tb.Helper()

	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		tb.Fatalf("failed to generate serial: %v", err)
	}
	return n
}

func encodeCert(der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func encodeKey(tb testing.TB, key crypto.Signer) string {
	tb.Helper()

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		tb.Fatalf("failed to marshal key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}
