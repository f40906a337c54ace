// Package commands implements the sensorgatectl subcommands. Each talks to
// the gateway's read-only admin HTTP surface; none has any authority over
// sensor nodes themselves.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// client is the admin API client, initialized in PersistentPreRunE.
	client *adminClient

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// adminAddr is the gateway admin surface address (host:port).
	adminAddr string
)

// rootCmd is the top-level cobra command for sensorgatectl.
var rootCmd = &cobra.Command{
	Use:   "sensorgatectl",
	Short: "Operator CLI for the sensorgate daemon",
	Long:  "sensorgatectl queries and manages a sensorgate daemon through its read-only admin HTTP surface.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = newAdminClient(adminAddr)
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&adminAddr, "addr", "localhost:9100",
		"sensorgate admin surface address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(sensorsCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(storeCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
