package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"globaleaks/tlsworker/pkg/cli"
)

var (
	// Global flags
	settingsFile string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "gl-tls-worker",
	Short: "TLS termination worker for GlobaLeaks",
	Long: `gl-tls-worker terminates TLS on the sockets handed down by the
GlobaLeaks supervisor and relays the plaintext to the local backend.

The supervisor writes the worker configuration (key, certificate chain,
DH parameters, backend address and socket descriptors) as JSON to
descriptor 42. The backend must be 127.0.0.1 or localhost.

Without a subcommand the worker runs, exactly like "gl-tls-worker run".`,
	Version:       Version,
	Args:          cobra.NoArgs,
	RunE:          runWorker,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the matching status.
func Execute() {
	err := rootCmd.Execute()
	code := cli.ExitCode(err)
	if err != nil && code != cli.ExitOK {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsFile, "settings", "s", "", "worker settings file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	addRunFlags(rootCmd)
}
