package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// AllowedProxyHosts are the only accepted values of proxy_ip.
var AllowedProxyHosts = []string{"127.0.0.1", "localhost"}

// ErrExternalProxyTarget is returned when proxy_ip names anything other
// than the local machine.
var ErrExternalProxyTarget = errors.New("attempting to proxy to an external host")

// Config is the configuration handed over by the supervisor.
// It is immutable once parsed: callers share one *Config and never write
// to it.
type Config struct {
	ProxyIP         string `json:"proxy_ip"`
	ProxyPort       Port   `json:"proxy_port"`
	SSLKey          string `json:"ssl_key"`
	SSLCert         string `json:"ssl_cert"`
	SSLIntermediate string `json:"ssl_intermediate"`
	SSLDH           string `json:"ssl_dh"`
	TLSSocketFDs    []int  `json:"tls_socket_fds"`
}

// Port is a TCP port that decodes from a JSON number or a numeric string.
type Port int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid port %s", data)
	}
	*p = Port(n)
	return nil
}

// requiredFields lists the keys that must be present in the document.
var requiredFields = []string{
	"proxy_ip",
	"proxy_port",
	"ssl_key",
	"ssl_cert",
	"ssl_intermediate",
	"ssl_dh",
	"tls_socket_fds",
}

// ParseConfig parses exactly one JSON object and validates it.
// Unknown keys are ignored; trailing data after the object is an error.
func ParseConfig(data []byte) (*Config, error) {
	var present map[string]json.RawMessage
	if err := decodeSingle(data, &present); err != nil {
		return nil, err
	}

	var missing []FieldError
	for _, field := range requiredFields {
		raw, ok := present[field]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			missing = append(missing, FieldError{Field: field, Message: "field is required"})
		}
	}
	if len(missing) > 0 {
		return nil, ValidationError{Errors: missing}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func decodeSingle(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("configuration is empty")
		}
		return fmt.Errorf("configuration is not valid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("configuration has trailing data after the JSON object")
	}
	return nil
}

// Validate checks field values. Every problem is reported at once.
func (c *Config) Validate() error {
	var errs []FieldError

	if c.ProxyIP == "" {
		errs = append(errs, FieldError{Field: "proxy_ip", Message: "field is required"})
	}
	if c.ProxyPort < 1 || c.ProxyPort > 65535 {
		errs = append(errs, FieldError{
			Field:   "proxy_port",
			Message: fmt.Sprintf("port %d out of range: must be between 1 and 65535", c.ProxyPort),
		})
	}
	if strings.TrimSpace(c.SSLKey) == "" {
		errs = append(errs, FieldError{Field: "ssl_key", Message: "private key is empty"})
	}
	if strings.TrimSpace(c.SSLCert) == "" {
		errs = append(errs, FieldError{Field: "ssl_cert", Message: "certificate is empty"})
	}
	if len(c.TLSSocketFDs) == 0 {
		errs = append(errs, FieldError{Field: "tls_socket_fds", Message: "at least one socket descriptor is required"})
	}

	seen := make(map[int]bool, len(c.TLSSocketFDs))
	for i, fd := range c.TLSSocketFDs {
		field := fmt.Sprintf("tls_socket_fds[%d]", i)
		switch {
		case fd < 0:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid descriptor %d", fd)})
		case seen[fd]:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("duplicate descriptor %d", fd)})
		}
		seen[fd] = true
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// CheckLoopback rejects any proxy target other than the local machine.
// The comparison is literal: names that merely resolve to loopback are
// refused as well.
func (c *Config) CheckLoopback() error {
	for _, host := range AllowedProxyHosts {
		if c.ProxyIP == host {
			return nil
		}
	}
	return fmt.Errorf("%w: %s . . aborting", ErrExternalProxyTarget, c.BackendAddr())
}

// BackendAddr returns the host:port of the backend.
func (c *Config) BackendAddr() string {
	return net.JoinHostPort(c.ProxyIP, strconv.Itoa(int(c.ProxyPort)))
}

// FDs returns a copy of the inherited listening descriptors.
func (c *Config) FDs() []int {
	return append([]int(nil), c.TLSSocketFDs...)
}

// Redacted returns a copy with the private key masked, safe to dump in
// debug logs.
func (c *Config) Redacted() Config {
	cp := *c
	cp.TLSSocketFDs = c.FDs()
	if cp.SSLKey != "" {
		cp.SSLKey = fmt.Sprintf("<redacted %d bytes>", len(c.SSLKey))
	}
	return cp
}

// FieldError represents a problem with one configuration field.
type FieldError struct {
	Field   string
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field problem of a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("invalid worker configuration: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("invalid worker configuration, %d errors:", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(" ")
		sb.WriteString(err.Error())
		sb.WriteString(";")
	}
	return strings.TrimSuffix(sb.String(), ";")
}
