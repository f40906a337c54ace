// Package gatewaymetrics exposes Prometheus instrumentation for the
// Connection Manager, Data Manager, Storage Manager, and Log Channel.
package gatewaymetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const namespace = "sensorgate"

// Label names.
const (
	labelReader = "reader"
	labelReason = "reason"
	labelKind   = "kind"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Gateway Metrics
// -------------------------------------------------------------------------

// Collector holds every sensorgate Prometheus metric.
//
//   - Connections tracks currently open sensor-node sockets.
//   - Records* counters track the TCP-to-buffer pipeline's volume.
//   - SBDepth gauges the shared buffer's per-reader backlog.
//   - Threshold/unknown-sensor counters surface Data Manager events.
//   - Storage counters track the relational sink's health.
//   - LogSequence tracks the Log Channel's monotonic sequence number.
type Collector struct {
	// Connections tracks the number of currently open sensor connections.
	Connections prometheus.Gauge

	// RecordsReceived counts records read off the wire and successfully
	// decoded.
	RecordsReceived prometheus.Counter

	// RecordsDropped counts records discarded, labeled by reason
	// (decode_error, buffer_rejected).
	RecordsDropped *prometheus.CounterVec

	// IdleEvictions counts connections closed for exceeding the idle timeout.
	IdleEvictions prometheus.Counter

	// SBDepth gauges the shared buffer's unread backlog, per reader slot.
	SBDepth *prometheus.GaugeVec

	// ThresholdEvents counts Data Manager threshold crossings, labeled by
	// kind (too_hot, too_cold, unknown_sensor).
	ThresholdEvents *prometheus.CounterVec

	// StoreInsertsTotal counts successful relational store inserts.
	StoreInsertsTotal prometheus.Counter

	// StoreInsertFailures counts failed relational store inserts.
	StoreInsertFailures prometheus.Counter

	// StoreReconnects counts Storage Manager reconnect attempts.
	StoreReconnects prometheus.Counter

	// RecordsTotal is the lifetime count of records the Data Manager has
	// processed, carried forward from the original daemon's shutdown summary.
	RecordsTotal prometheus.Counter

	// LogSequence gauges the last sequence number the log-writer child
	// assigned to a Log Channel message.
	LogSequence prometheus.Gauge
}

// NewCollector creates a Collector with every metric registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Connections,
		c.RecordsReceived,
		c.RecordsDropped,
		c.IdleEvictions,
		c.SBDepth,
		c.ThresholdEvents,
		c.StoreInsertsTotal,
		c.StoreInsertFailures,
		c.StoreReconnects,
		c.RecordsTotal,
		c.LogSequence,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connmgr",
			Name:      "connections",
			Help:      "Number of currently open sensor connections.",
		}),

		RecordsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connmgr",
			Name:      "records_received_total",
			Help:      "Total sensor records read off the wire.",
		}),

		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connmgr",
			Name:      "records_dropped_total",
			Help:      "Total sensor records dropped before reaching the shared buffer.",
		}, []string{labelReason}),

		IdleEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connmgr",
			Name:      "idle_evictions_total",
			Help:      "Total sensor connections closed for exceeding the idle timeout.",
		}),

		SBDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sbuffer",
			Name:      "depth",
			Help:      "Unread record backlog in the shared buffer, per reader.",
		}, []string{labelReader}),

		ThresholdEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datamgr",
			Name:      "threshold_events_total",
			Help:      "Total threshold and unknown-sensor events raised by the data manager.",
		}, []string{labelKind}),

		StoreInsertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storagemgr",
			Name:      "store_inserts_total",
			Help:      "Total successful relational store inserts.",
		}),

		StoreInsertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storagemgr",
			Name:      "store_insert_failures_total",
			Help:      "Total failed relational store inserts.",
		}),

		StoreReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storagemgr",
			Name:      "store_reconnects_total",
			Help:      "Total relational store reconnect attempts.",
		}),

		RecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datamgr",
			Name:      "records_total",
			Help:      "Lifetime count of records processed by the data manager.",
		}),

		LogSequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "logchan",
			Name:      "last_sequence",
			Help:      "Last sequence number assigned by the log-writer child.",
		}),
	}
}

// -------------------------------------------------------------------------
// Connection Lifecycle
// -------------------------------------------------------------------------

// ConnectionOpened increments the active connections gauge.
func (c *Collector) ConnectionOpened() { c.Connections.Inc() }

// ConnectionClosed decrements the active connections gauge.
func (c *Collector) ConnectionClosed() { c.Connections.Dec() }

// IdleEvicted increments the idle-eviction counter.
func (c *Collector) IdleEvicted() { c.IdleEvictions.Inc() }

// -------------------------------------------------------------------------
// Record Pipeline
// -------------------------------------------------------------------------

// RecordReceived increments the records-received counter.
func (c *Collector) RecordReceived() { c.RecordsReceived.Inc() }

// RecordDropped increments the records-dropped counter for reason.
func (c *Collector) RecordDropped(reason string) {
	c.RecordsDropped.WithLabelValues(reason).Inc()
}

// SetSBDepth sets the shared buffer backlog gauge for the named reader.
func (c *Collector) SetSBDepth(reader string, depth int) {
	c.SBDepth.WithLabelValues(reader).Set(float64(depth))
}

// -------------------------------------------------------------------------
// Data Manager Events
// -------------------------------------------------------------------------

// ThresholdEvent increments the threshold-event counter for kind
// (too_hot, too_cold, unknown_sensor).
func (c *Collector) ThresholdEvent(kind string) {
	c.ThresholdEvents.WithLabelValues(kind).Inc()
	c.RecordsTotal.Inc()
}

// -------------------------------------------------------------------------
// Storage Manager
// -------------------------------------------------------------------------

// StoreInsertSucceeded increments the successful-insert counter.
func (c *Collector) StoreInsertSucceeded() { c.StoreInsertsTotal.Inc() }

// StoreInsertFailed increments the failed-insert counter.
func (c *Collector) StoreInsertFailed() { c.StoreInsertFailures.Inc() }

// StoreReconnectAttempted increments the reconnect-attempt counter.
func (c *Collector) StoreReconnectAttempted() { c.StoreReconnects.Inc() }

// -------------------------------------------------------------------------
// Log Channel
// -------------------------------------------------------------------------

// SetLogSequence sets the last-sequence gauge.
func (c *Collector) SetLogSequence(seq uint64) { c.LogSequence.Set(float64(seq)) }
