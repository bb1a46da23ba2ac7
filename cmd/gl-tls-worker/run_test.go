package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"globaleaks/tlsworker/pkg/cli"
	"globaleaks/tlsworker/pkg/config"
)

func newRunCommand(t *testing.T) *cobra.Command {
	t.Helper()

	origFlags, origSettings, origVerbose := runFlags, settingsFile, verbose
	t.Cleanup(func() {
		runFlags, settingsFile, verbose = origFlags, origSettings, origVerbose
	})

	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	return cmd
}

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		verbose bool
		check   func(*testing.T, *config.Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Worker.ConfigFD != config.DefaultConfigFD {
					t.Errorf("ConfigFD = %d, want %d", cfg.Worker.ConfigFD, config.DefaultConfigFD)
				}
				if cfg.Telemetry.Metrics.Enabled {
					t.Error("metrics enabled by default")
				}
			},
		},
		{
			name: "flag overrides",
			args: []string{"--config-fd", "3", "--log-level", "warn", "--log-format", "json", "--metrics", "--admin-addr", "127.0.0.1:9999"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Worker.ConfigFD != 3 {
					t.Errorf("ConfigFD = %d, want 3", cfg.Worker.ConfigFD)
				}
				if cfg.Telemetry.Logging.Level != "warn" || cfg.Telemetry.Logging.Format != "json" {
					t.Errorf("Logging = %+v", cfg.Telemetry.Logging)
				}
				if !cfg.Telemetry.Metrics.Enabled {
					t.Error("--metrics did not enable metrics")
				}
				if cfg.Admin.ListenAddress != "127.0.0.1:9999" {
					t.Errorf("ListenAddress = %q", cfg.Admin.ListenAddress)
				}
			},
		},
		{
			name:    "verbose means debug",
			verbose: true,
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Telemetry.Logging.Level != "debug" {
					t.Errorf("Level = %q, want debug", cfg.Telemetry.Logging.Level)
				}
			},
		},
		{
			name:    "log level wins over verbose",
			args:    []string{"--log-level", "error"},
			verbose: true,
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Telemetry.Logging.Level != "error" {
					t.Errorf("Level = %q, want error", cfg.Telemetry.Logging.Level)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRunCommand(t)
			verbose = tt.verbose
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			cfg, err := loadSettings(cmd)
			if err != nil {
				t.Fatalf("loadSettings() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadSettingsFile(t *testing.T) {
	cmd := newRunCommand(t)

	settingsFile = filepath.Join(t.TempDir(), "worker.yaml")
	data := []byte("worker:\n  config_fd: 7\nproxy:\n  idle_timeout: 5m\n")
	if err := os.WriteFile(settingsFile, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := cmd.Flags().Parse([]string{"--config-fd", "9"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadSettings(cmd)
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}
	if cfg.Worker.ConfigFD != 9 {
		t.Errorf("ConfigFD = %d, want the flag value 9", cfg.Worker.ConfigFD)
	}
	if cfg.Proxy.IdleTimeout.Minutes() != 5 {
		t.Errorf("IdleTimeout = %v, want 5m", cfg.Proxy.IdleTimeout)
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		settings string
	}{
		{name: "standard stream descriptor", args: []string{"--config-fd", "1"}},
		{name: "bad log level", args: []string{"--log-level", "loud"}},
		{name: "missing settings file", settings: "does-not-exist.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRunCommand(t)
			if tt.settings != "" {
				settingsFile = filepath.Join(t.TempDir(), tt.settings)
			}
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			_, err := loadSettings(cmd)
			if err == nil {
				t.Fatal("loadSettings() error = nil, want error")
			}
			if code := cli.ExitCode(err); code != cli.ExitConfig {
				t.Errorf("ExitCode() = %d, want %d", code, cli.ExitConfig)
			}
		})
	}
}
