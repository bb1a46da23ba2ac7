//go:build integration

package main

import (
	"bytes"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"globaleaks/tlsworker/internal/testcerts"
)

func buildWorkerBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "gl-tls-worker")
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build gl-tls-worker: %v\nOutput: %s", err, output)
	}
	return binaryPath
}

// startWorker runs the binary with the configuration document on
// descriptor 3 and one listening socket on descriptor 4.
func startWorker(t *testing.T, binary string, doc []byte, args ...string) (*exec.Cmd, *bytes.Buffer) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	sock, err := ln.(*net.TCPListener).File()
	if err != nil {
		t.Fatal(err)
	}
	ln.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := exec.Command(binary, append([]string{"run", "--config-fd", "3"}, args...)...)
	cmd.ExtraFiles = []*os.File{r, sock}
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	r.Close()
	sock.Close()
	t.Cleanup(func() {
		if cmd.ProcessState == nil {
			cmd.Process.Kill()
			cmd.Wait()
		}
	})

	if _, err := w.Write(doc); err != nil {
		t.Fatalf("failed to write configuration: %v", err)
	}
	w.Close()

	return cmd, &out
}

func waitExit(t *testing.T, cmd *exec.Cmd) int {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		return 0
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not exit within 10 seconds")
		return -1
	}
}

func TestWorkerStartupFailures(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	binary := buildWorkerBinary(t)
	b := testcerts.NewBundle(t)

	tests := []struct {
		name string
		doc  []byte
		want string
	}{
		{
			name: "external backend",
			doc:  b.JSON("10.0.0.1", 8082, []int{4}),
			want: ". . aborting",
		},
		{
			name: "untrusted chain",
			doc:  b.JSON("127.0.0.1", 8082, []int{4}),
			want: "setup failed at validation",
		},
		{
			name: "truncated document",
			doc:  []byte(`{"proxy_ip": "127.0.0.1"`),
			want: "setup failed at config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, out := startWorker(t, binary, tt.doc, "--log-format", "json")

			if code := waitExit(t, cmd); code != 1 {
				t.Errorf("exit code = %d, want 1\n%s", code, out.String())
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
			if strings.Contains(out.String(), "PRIVATE KEY") {
				t.Error("private key leaked to output")
			}
		})
	}
}

func TestWorkerSettingsErrorExitCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	binary := buildWorkerBinary(t)

	cmd := exec.Command(binary, "run", "--log-level", "loud")
	output, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 2 {
		t.Fatalf("err = %v, want exit code 2\nOutput: %s", err, output)
	}
	if !bytes.Contains(output, []byte("config error")) {
		t.Errorf("expected 'config error' in output, got: %s", output)
	}
}

func TestValidateBinary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	binary := buildWorkerBinary(t)
	b := testcerts.NewBundle(t)

	dir := t.TempDir()
	rootsPath := filepath.Join(dir, "roots.pem")
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(rootsPath, []byte(b.Root.PEM), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, b.JSON("127.0.0.1", 8082, []int{3}), 0o600); err != nil {
		t.Fatal(err)
	}

	output, err := exec.Command(binary, "validate", "--roots", rootsPath, configPath).CombinedOutput()
	if err != nil {
		t.Fatalf("validate failed: %v\nOutput: %s", err, output)
	}
	if !bytes.Contains(output, []byte("configuration is valid")) {
		t.Errorf("expected 'configuration is valid' in output, got: %s", output)
	}

	output, err = exec.Command(binary, "validate", configPath).CombinedOutput()
	if err == nil {
		t.Fatalf("validate against system roots succeeded\nOutput: %s", output)
	}
	if !bytes.Contains(output, []byte("✗ certificate chain")) {
		t.Errorf("expected a failed chain check, got: %s", output)
	}
}
