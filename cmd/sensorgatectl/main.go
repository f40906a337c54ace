// Command sensorgatectl is the operator CLI for a running sensorgate
// daemon: it queries the admin HTTP surface for sensor and readings data,
// and can reset the relational store directly.
package main

import "github.com/ekiciact/SensorNet-Manager/cmd/sensorgatectl/commands"

func main() {
	commands.Execute()
}
