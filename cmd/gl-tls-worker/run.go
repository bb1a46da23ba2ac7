package main

import (
	"os"

	"github.com/spf13/cobra"

	"globaleaks/tlsworker/pkg/cli"
	"globaleaks/tlsworker/pkg/config"
	"globaleaks/tlsworker/pkg/server"
	"globaleaks/tlsworker/pkg/telemetry"
	"globaleaks/tlsworker/pkg/telemetry/health"
)

var runFlags struct {
	configFD  int
	logLevel  string
	logFormat string
	metrics   bool
	adminAddr string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the TLS worker",
	Long: `Run the TLS worker under the GlobaLeaks supervisor.

The worker reads its JSON configuration from the config descriptor, opens
the inherited sockets and relays TLS connections to the local backend.
SIGTERM or SIGINT drain open connections before exiting. If the
supervisor dies the worker exits at once. SIGUSR1 logs a status line.

Examples:
  # Run with defaults (configuration on descriptor 42)
  gl-tls-worker run

  # Run with a settings file and Prometheus metrics on the admin address
  gl-tls-worker run --settings /etc/globaleaks/tls-worker.yaml --metrics

  # Debug logs in JSON
  gl-tls-worker run --log-level debug --log-format json`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

// addRunFlags registers the run flags on cmd. Both the root command and
// run accept them.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&runFlags.configFD, "config-fd", config.DefaultConfigFD, "descriptor carrying the JSON configuration")
	cmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&runFlags.logFormat, "log-format", "", "override log format (text, json)")
	cmd.Flags().BoolVar(&runFlags.metrics, "metrics", false, "serve Prometheus metrics on the admin address")
	cmd.Flags().StringVar(&runFlags.adminAddr, "admin-addr", "", "override the loopback admin address")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	config.SetConfig(cfg)

	tel, err := telemetry.New(&cfg.Telemetry, versionInfo(), os.Stdout)
	if err != nil {
		return cli.NewConfigError("telemetry", err.Error())
	}

	signals, stop := cli.NotifyWorkerSignals()
	defer stop()

	srv := server.New(cfg, server.Deps{
		Telemetry:    tel,
		Signals:      signals,
		SettingsPath: settingsFile,
		ParentPID:    parentPID,
	})

	ctx := cmd.Context()
	if err := srv.Start(ctx); err != nil {
		return err
	}
	return srv.Run(ctx)
}

// loadSettings reads the settings file (or the defaults), applies the
// environment and then the command line flags.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(settingsFile)
	if err != nil {
		return nil, cli.NewConfigError("settings", err.Error())
	}

	flags := cmd.Flags()
	if flags.Changed("config-fd") {
		cfg.Worker.ConfigFD = runFlags.configFD
	}
	if flags.Changed("log-level") {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if flags.Changed("log-format") {
		cfg.Telemetry.Logging.Format = runFlags.logFormat
	}
	if flags.Changed("metrics") {
		cfg.Telemetry.Metrics.Enabled = runFlags.metrics
	}
	if flags.Changed("admin-addr") {
		cfg.Admin.ListenAddress = runFlags.adminAddr
	}

	if err := config.Validate(cfg); err != nil {
		return nil, cli.NewConfigError("flags", err.Error())
	}
	return cfg, nil
}

func versionInfo() health.VersionInfo {
	return health.VersionInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	}
}
