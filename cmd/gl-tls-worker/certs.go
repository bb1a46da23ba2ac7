package main

import (
	"github.com/spf13/cobra"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Inspect TLS certificates",
	Long: `Inspect the TLS certificates served by the worker.

Subcommands:
  info - Display certificate details and days until expiry

Examples:
  # Display certificate information
  gl-tls-worker certs info server.crt`,
}

func init() {
	rootCmd.AddCommand(certsCmd)
}
