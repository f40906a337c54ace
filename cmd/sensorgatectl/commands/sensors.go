package commands

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func sensorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sensors",
		Short: "Inspect registered sensors",
	}

	cmd.AddCommand(sensorsListCmd())
	cmd.AddCommand(sensorsGetCmd())
	cmd.AddCommand(sensorsReadingsCmd())

	return cmd
}

func sensorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered sensor",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var sensors []sensorView
			if err := client.getJSON("/api/v1/sensors", nil, &sensors); err != nil {
				return fmt.Errorf("list sensors: %w", err)
			}

			out, err := formatSensors(sensors, outputFormat)
			if err != nil {
				return fmt.Errorf("format sensors: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

func sensorsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <sensor-id>",
		Short: "Show one sensor's registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return fmt.Errorf("parse sensor id %q: %w", args[0], err)
			}

			var sensor sensorView
			if err := client.getJSON(fmt.Sprintf("/api/v1/sensors/%d", id), nil, &sensor); err != nil {
				return fmt.Errorf("get sensor %d: %w", id, err)
			}

			out, err := formatSensor(sensor, outputFormat)
			if err != nil {
				return fmt.Errorf("format sensor: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

func sensorsReadingsCmd() *cobra.Command {
	var (
		after    int64
		minValue float64
	)

	cmd := &cobra.Command{
		Use:   "readings <sensor-id>",
		Short: "List stored readings for one sensor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return fmt.Errorf("parse sensor id %q: %w", args[0], err)
			}

			query := url.Values{}
			if after != 0 {
				query.Set("after", strconv.FormatInt(after, 10))
			}
			if cmd.Flags().Changed("min-value") {
				query.Set("min_value", strconv.FormatFloat(minValue, 'f', -1, 64))
			}

			var readings []readingView
			if err := client.getJSON(fmt.Sprintf("/api/v1/sensors/%d/readings", id), query, &readings); err != nil {
				return fmt.Errorf("get readings for sensor %d: %w", id, err)
			}

			out, err := formatReadings(readings, outputFormat)
			if err != nil {
				return fmt.Errorf("format readings: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&after, "after", 0, "only readings after this unix timestamp")
	flags.Float64Var(&minValue, "min-value", 0, "only readings at or above this value")

	return cmd
}
