package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the gateway admin surface is reachable",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var status map[string]string
			if err := client.getJSON("/healthz", nil, &status); err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			fmt.Println(status["status"])
			return nil
		},
	}
}
