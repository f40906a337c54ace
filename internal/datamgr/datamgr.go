// Package datamgr implements the Data Manager: it drains the shared
// buffer's DM reader slot, enriches each record against the Sensor Map
// Registry, and raises threshold and unknown-sensor events.
package datamgr

import (
	"context"
	"errors"
	"fmt"

	"github.com/ekiciact/SensorNet-Manager/internal/registry"
	"github.com/ekiciact/SensorNet-Manager/internal/sbuffer"
)

// ReaderID is the shared buffer reader slot the Data Manager drains.
const ReaderID = "dm"

// EventLogger is the minimal logging contract datamgr needs.
type EventLogger interface {
	Logf(format string, args ...any)
}

// Metrics is the minimal instrumentation contract datamgr needs.
type Metrics interface {
	ThresholdEvent(kind string)
}

// Config configures a Manager.
type Config struct {
	// SetMinTemp is the running-average floor; below it a TOO_COLD
	// event is raised.
	SetMinTemp float64
	// SetMaxTemp is the running-average ceiling; above it a TOO_HOT
	// event is raised.
	SetMaxTemp float64
}

// Manager is the Data Manager.
type Manager struct {
	cfg Config
	sb  *sbuffer.Buffer
	reg *registry.Registry
	log EventLogger
	met Metrics

	processed int
}

// New creates a Manager backed by reg, which must already have been
// populated via Registry.LoadMap.
func New(cfg Config, sb *sbuffer.Buffer, reg *registry.Registry, log EventLogger, met Metrics) *Manager {
	return &Manager{cfg: cfg, sb: sb, reg: reg, log: log, met: met}
}

// Run drains sb's DM reader slot until it signals End (sbuffer.End) or ctx
// is cancelled. On normal termination it emits a summary log event.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r, err := m.sb.Remove(ReaderID)
		if err != nil {
			if errors.Is(err, sbuffer.End) {
				m.log.Logf("DM_SUMMARY records_processed=%d", m.processed)
				return nil
			}
			return fmt.Errorf("datamgr: remove: %w", err)
		}

		m.processed++

		if !m.reg.Known(r.SensorID) {
			m.log.Logf("UNKNOWN_SENSOR sensor_id=%d", r.SensorID)
			m.met.ThresholdEvent("unknown_sensor")
			continue
		}

		res, err := m.reg.Observe(r.SensorID, r.Value, r.TS)
		if err != nil {
			// Known() just confirmed the sensor is registered; Observe
			// failing here would indicate a registry bug, not bad input.
			m.log.Logf("OBSERVE_ERROR sensor_id=%d: %v", r.SensorID, err)
			continue
		}

		if !res.Valid {
			continue
		}

		switch {
		case res.RunningAvg < m.cfg.SetMinTemp:
			m.log.Logf("TOO_COLD sensor_id=%d avg=%.2f", r.SensorID, res.RunningAvg)
			m.met.ThresholdEvent("too_cold")
		case res.RunningAvg > m.cfg.SetMaxTemp:
			m.log.Logf("TOO_HOT sensor_id=%d avg=%.2f", r.SensorID, res.RunningAvg)
			m.met.ThresholdEvent("too_hot")
		}
	}
}
