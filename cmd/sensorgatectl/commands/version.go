package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	appversion "github.com/ekiciact/SensorNet-Manager/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print sensorgatectl's build version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(appversion.Full("sensorgatectl"))
			return nil
		},
	}
}
