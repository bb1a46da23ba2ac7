package health

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"time"
)

// Names of the worker's readiness checks.
const (
	CheckLifecycle   = "lifecycle"
	CheckListeners   = "listeners"
	CheckBackend     = "backend"
	CheckCertificate = "certificate"
)

// LifecycleCheck passes only while state returns "running".
func LifecycleCheck(state func() string) CheckFunc {
	return func(ctx context.Context) error {
		if s := state(); s != "running" {
			return fmt.Errorf("worker is %s", s)
		}
		return nil
	}
}

// ListenersCheck passes while at least one listener accepts connections.
func ListenersCheck(open func() int) CheckFunc {
	return func(ctx context.Context) error {
		if open() == 0 {
			return fmt.Errorf("no listener is accepting connections")
		}
		return nil
	}
}

// BackendCheck dials the backend and closes the connection immediately.
func BackendCheck(addr string) CheckFunc {
	return func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("backend %s unreachable: %w", addr, err)
		}
		return conn.Close()
	}
}

// CertificateCheck fails once leaf has expired.
func CertificateCheck(leaf *x509.Certificate, now func() time.Time) CheckFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		if t := now(); t.After(leaf.NotAfter) {
			return fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
		}
		return nil
	}
}
