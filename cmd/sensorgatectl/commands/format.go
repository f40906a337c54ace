package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// sensorView mirrors adminapi's sensorSummary response shape.
type sensorView struct {
	SensorID     uint16    `json:"sensor_id"`
	RoomID       uint32    `json:"room_id"`
	RunningAvg   float64   `json:"running_avg"`
	AvgValid     bool      `json:"avg_valid"`
	LastModified time.Time `json:"last_modified"`
}

// readingView mirrors one row of storagemgr.SensorReading as the admin
// surface serializes it.
type readingView struct {
	ID       uint    `json:"ID"`
	SensorID uint16  `json:"SensorID"`
	Value    float64 `json:"Value"`
	TS       int64   `json:"TS"`
}

func shortAvg(v sensorView) string {
	if !v.AvgValid {
		return "-"
	}
	return strconv.FormatFloat(v.RunningAvg, 'f', 2, 64)
}

func shortLastModified(v sensorView) string {
	if v.LastModified.IsZero() {
		return "-"
	}
	return v.LastModified.Format(time.RFC3339)
}

// formatSensors renders a list of sensors as a table or as indented JSON.
func formatSensors(sensors []sensorView, format string) (string, error) {
	if format == "json" {
		return marshalIndented(sensors)
	}

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"SENSOR ID", "ROOM ID", "RUNNING AVG", "LAST MODIFIED"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, s := range sensors {
		table.Append([]string{
			strconv.Itoa(int(s.SensorID)),
			strconv.Itoa(int(s.RoomID)),
			shortAvg(s),
			shortLastModified(s),
		})
	}
	table.Render()
	return buf.String(), nil
}

// formatSensor renders a single sensor as a table or as indented JSON.
func formatSensor(s sensorView, format string) (string, error) {
	if format == "json" {
		return marshalIndented(s)
	}

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetColumnSeparator(":")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.Append([]string{"sensor_id", strconv.Itoa(int(s.SensorID))})
	table.Append([]string{"room_id", strconv.Itoa(int(s.RoomID))})
	table.Append([]string{"running_avg", shortAvg(s)})
	table.Append([]string{"last_modified", shortLastModified(s)})
	table.Render()
	return buf.String(), nil
}

// formatReadings renders a list of readings as a table or as indented JSON.
func formatReadings(readings []readingView, format string) (string, error) {
	if format == "json" {
		return marshalIndented(readings)
	}

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"TIMESTAMP", "VALUE"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, r := range readings {
		table.Append([]string{
			time.Unix(r.TS, 0).Format(time.RFC3339),
			strconv.FormatFloat(r.Value, 'f', 2, 64),
		})
	}
	table.Render()
	return buf.String(), nil
}

func marshalIndented(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return string(b) + "\n", nil
}
