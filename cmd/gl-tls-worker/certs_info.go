package main

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"globaleaks/tlsworker/pkg/cli"
	securityTLS "globaleaks/tlsworker/pkg/security/tls"
)

var infoFlags struct {
	format   string
	warnDays int
}

// now is replaced in tests.
var now = time.Now

var certsInfoCmd = &cobra.Command{
	Use:   "info [cert-file]",
	Short: "Display certificate details",
	Long: `Display detailed information about a TLS certificate.

The first certificate of the file is shown, so a full chain file displays
its leaf. The output includes:
  - Subject and issuer
  - Validity period and days until expiry
  - Subject Alternative Names (DNS, IP)
  - Key usage and extended key usage
  - Signature and public key algorithms
  - Serial number

Output formats:
  - text (default): Human-readable formatted output
  - json: JSON-formatted output for scripting

Examples:
  # Display certificate info in text format
  gl-tls-worker certs info server.crt

  # Warn when fewer than 14 days remain
  gl-tls-worker certs info --warn-days 14 server.crt

  # Display in JSON format
  gl-tls-worker certs info --format json server.crt`,
	Args: cobra.ExactArgs(1),
	RunE: displayCertInfo,
}

func init() {
	certsCmd.AddCommand(certsInfoCmd)

	certsInfoCmd.Flags().StringVar(&infoFlags.format, "format", "text", "output format: text, json")
	certsInfoCmd.Flags().IntVar(&infoFlags.warnDays, "warn-days", 30, "warn when fewer days remain")
}

func displayCertInfo(cmd *cobra.Command, args []string) error {
	certFile := args[0]

	format, err := cli.ParseFormat(infoFlags.format)
	if err != nil {
		return err
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	cert, err := securityTLS.ParseLeaf(certPEM)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	if format == cli.FormatJSON {
		return printCertJSON(cmd.OutOrStdout(), cert, infoFlags.warnDays)
	}
	return printCertText(cmd.OutOrStdout(), cert, certFile, infoFlags.warnDays)
}

func printCertText(w io.Writer, cert *x509.Certificate, file string, warnDays int) error {
	fmt.Fprintf(w, "Certificate: %s\n\n", file)

	fmt.Fprintln(w, "Subject:")
	fmt.Fprintf(w, "  Common Name (CN): %s\n", cert.Subject.CommonName)
	if len(cert.Subject.Organization) > 0 {
		fmt.Fprintf(w, "  Organization (O): %s\n", cert.Subject.Organization[0])
	}
	if len(cert.Subject.Country) > 0 {
		fmt.Fprintf(w, "  Country (C): %s\n", cert.Subject.Country[0])
	}

	fmt.Fprintln(w, "\nIssuer:")
	fmt.Fprintf(w, "  Common Name (CN): %s\n", cert.Issuer.CommonName)
	if len(cert.Issuer.Organization) > 0 {
		fmt.Fprintf(w, "  Organization (O): %s\n", cert.Issuer.Organization[0])
	}

	fmt.Fprintln(w, "\nValidity:")
	fmt.Fprintf(w, "  Not Before: %s\n", cert.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(w, "  Not After: %s\n", cert.NotAfter.Format(time.RFC3339))
	fmt.Fprintf(w, "  Duration: %d days\n", int(cert.NotAfter.Sub(cert.NotBefore).Hours()/24))

	days, warning := securityTLS.CheckCertificateExpiration(cert, now(), warnDays)
	if now().After(cert.NotAfter) {
		fmt.Fprintf(w, "  Status: ✗ EXPIRED on %s\n", cert.NotAfter.Format("2006-01-02"))
	} else {
		fmt.Fprintf(w, "  Status: ✓ Valid (%d days remaining)\n", days)
		if warning != "" {
			fmt.Fprintf(w, "  Warning: ⚠  %s\n", warning)
		}
	}

	if len(cert.DNSNames) > 0 || len(cert.IPAddresses) > 0 {
		fmt.Fprintln(w, "\nSubject Alternative Names:")
		for _, san := range cert.DNSNames {
			fmt.Fprintf(w, "  - DNS: %s\n", san)
		}
		for _, ip := range cert.IPAddresses {
			fmt.Fprintf(w, "  - IP: %s\n", ip.String())
		}
	}

	if cert.KeyUsage != 0 {
		fmt.Fprintln(w, "\nKey Usage:")
		for _, usage := range getKeyUsages(cert.KeyUsage) {
			fmt.Fprintf(w, "  - %s\n", usage)
		}
	}

	if len(cert.ExtKeyUsage) > 0 {
		fmt.Fprintln(w, "\nExtended Key Usage:")
		for _, usage := range getExtKeyUsages(cert.ExtKeyUsage) {
			fmt.Fprintf(w, "  - %s\n", usage)
		}
	}

	info := securityTLS.ExtractCertificateInfo(cert)

	fmt.Fprintln(w, "\nAlgorithms:")
	fmt.Fprintf(w, "  Signature Algorithm: %s\n", info.SignatureAlgorithm)
	fmt.Fprintf(w, "  Public Key Algorithm: %s\n", info.PublicKeyAlgorithm)

	fmt.Fprintln(w, "\nAdditional Information:")
	fmt.Fprintf(w, "  Serial Number: %s\n", info.SerialNumber)
	fmt.Fprintf(w, "  Is CA: %v\n", info.IsCA)
	fmt.Fprintf(w, "  Self-Signed: %v\n", info.SelfSigned)

	return nil
}

// certReport is the JSON form of certs info.
type certReport struct {
	*securityTLS.CertificateInfo
	DaysRemaining int      `json:"days_remaining"`
	Expired       bool     `json:"expired"`
	Warning       string   `json:"warning,omitempty"`
	KeyUsage      []string `json:"key_usage,omitempty"`
	ExtKeyUsage   []string `json:"ext_key_usage,omitempty"`
}

func printCertJSON(w io.Writer, cert *x509.Certificate, warnDays int) error {
	days, warning := securityTLS.CheckCertificateExpiration(cert, now(), warnDays)

	report := certReport{
		CertificateInfo: securityTLS.ExtractCertificateInfo(cert),
		DaysRemaining:   days,
		Expired:         now().After(cert.NotAfter),
		Warning:         warning,
		KeyUsage:        getKeyUsages(cert.KeyUsage),
		ExtKeyUsage:     getExtKeyUsages(cert.ExtKeyUsage),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func getKeyUsages(usage x509.KeyUsage) []string {
	names := []struct {
		bit  x509.KeyUsage
		name string
	}{
		{x509.KeyUsageDigitalSignature, "Digital Signature"},
		{x509.KeyUsageContentCommitment, "Content Commitment"},
		{x509.KeyUsageKeyEncipherment, "Key Encipherment"},
		{x509.KeyUsageDataEncipherment, "Data Encipherment"},
		{x509.KeyUsageKeyAgreement, "Key Agreement"},
		{x509.KeyUsageCertSign, "Certificate Sign"},
		{x509.KeyUsageCRLSign, "CRL Sign"},
		{x509.KeyUsageEncipherOnly, "Encipher Only"},
		{x509.KeyUsageDecipherOnly, "Decipher Only"},
	}

	var usages []string
	for _, n := range names {
		if usage&n.bit != 0 {
			usages = append(usages, n.name)
		}
	}
	return usages
}

func getExtKeyUsages(usages []x509.ExtKeyUsage) []string {
	var result []string
	for _, usage := range usages {
		result = append(result, getExtKeyUsage(usage))
	}
	return result
}

func getExtKeyUsage(usage x509.ExtKeyUsage) string {
	switch usage {
	case x509.ExtKeyUsageAny:
		return "Any"
	case x509.ExtKeyUsageServerAuth:
		return "Server Authentication"
	case x509.ExtKeyUsageClientAuth:
		return "Client Authentication"
	case x509.ExtKeyUsageCodeSigning:
		return "Code Signing"
	case x509.ExtKeyUsageEmailProtection:
		return "Email Protection"
	case x509.ExtKeyUsageTimeStamping:
		return "Time Stamping"
	case x509.ExtKeyUsageOCSPSigning:
		return "OCSP Signing"
	default:
		return fmt.Sprintf("Unknown (%d)", usage)
	}
}
