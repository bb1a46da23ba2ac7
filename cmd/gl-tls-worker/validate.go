package main

import (
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"globaleaks/tlsworker/pkg/cli"
	securityTLS "globaleaks/tlsworker/pkg/security/tls"
	"globaleaks/tlsworker/pkg/worker"
)

var validateFlags struct {
	relaxed bool
	format  string
	roots   string
}

var validateCmd = &cobra.Command{
	Use:   "validate <config.json|->",
	Short: "Validate a worker configuration document",
	Long: `Validate a worker configuration document without starting the worker.

The document is the JSON the supervisor writes to the config descriptor.
The checks run in the same order as at startup:
  - parse: required fields and value ranges
  - loopback: the backend is 127.0.0.1 or localhost
  - certificate chain: key pair, validity, chain of trust, DH parameters
  - tls context: the TLS server configuration can be built

Use "-" to read the document from standard input.

Examples:
  # Validate a saved document
  gl-tls-worker validate config.json

  # Accept a self-signed certificate or a missing intermediate
  gl-tls-worker validate --relaxed config.json

  # Trust a private root and report in JSON
  gl-tls-worker validate --roots ca.pem --format json config.json`,
	Args: cobra.ExactArgs(1),
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.relaxed, "relaxed", false, "accept self-signed certificates and a missing intermediate")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
	validateCmd.Flags().StringVar(&validateFlags.roots, "roots", "", "PEM file of trusted roots (default: system roots)")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}

	var opts []securityTLS.ValidatorOption
	if validateFlags.roots != "" {
		pool, err := loadRoots(validateFlags.roots)
		if err != nil {
			return cli.NewConfigError("roots", err.Error())
		}
		opts = append(opts, securityTLS.WithRoots(pool))
	}

	data, err := readDocument(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	report := validateDocument(data, validateFlags.relaxed, opts...)

	out := cmd.OutOrStdout()
	if err := cli.NewFormatter(format).FormatTo(out, &report); err != nil {
		return err
	}
	if format == cli.FormatText && report.Valid {
		fmt.Fprintln(out, "\nconfiguration is valid")
	}

	if !report.Valid {
		return cli.NewCommandError("validate", errors.New("configuration is invalid"))
	}
	return nil
}

// validateDocument runs the startup checks on data. A failed step ends
// the report.
func validateDocument(data []byte, relaxed bool, opts ...securityTLS.ValidatorOption) cli.Report {
	var report cli.Report

	cfg, err := worker.ParseConfig(data)
	if !report.Add("parse", err) {
		return report
	}

	if !report.Add("loopback", cfg.CheckLoopback()) {
		return report
	}

	res := securityTLS.NewChainValidator(opts...).Validate(cfg, relaxed)
	if !report.Add("certificate chain", res.Err) {
		return report
	}

	_, err = securityTLS.NewServerContext(res, securityTLS.MaterialFromConfig(cfg))
	report.Add("tls context", err)

	return report
}

func readDocument(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, worker.MaxConfigSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return data, nil
}

func loadRoots(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roots: %w", err)
	}

	certs, err := securityTLS.ParseCertificates(data)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	for _, cert := range certs {
		pool.AddCert(cert)
	}
	return pool, nil
}
