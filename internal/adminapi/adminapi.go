// Package adminapi exposes a small read-only HTTP surface over the Sensor
// Map Registry and the relational store, for the operator CLI and for
// liveness/metrics scraping. It carries no authority over sensor nodes:
// they never speak this protocol, only operators do.
package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ekiciact/SensorNet-Manager/internal/storagemgr"
)

// RegistryReader is the read-only subset of *registry.Registry this
// surface needs.
type RegistryReader interface {
	Sensors() []uint16
	Known(sensorID uint16) bool
	RoomID(sensorID uint16) uint32
	Avg(sensorID uint16) (float64, bool)
	LastModified(sensorID uint16) time.Time
}

// ReadingsQuerier is the read-only subset of *storagemgr.GormStore this
// surface needs for the per-sensor readings endpoint.
type ReadingsQuerier interface {
	Query(sensorID uint16, filter storagemgr.QueryFilter) ([]storagemgr.SensorReading, error)
}

// Server serves the admin HTTP surface.
type Server struct {
	reg    RegistryReader
	store  ReadingsQuerier
	router chi.Router
}

// New builds a Server routing GET /healthz, GET /metrics, and the
// /api/v1/sensors family over reg and store. gatherer is typically the
// *prometheus.Registry the rest of the gateway registers its collectors
// against.
func New(reg RegistryReader, store ReadingsQuerier, gatherer prometheus.Gatherer) *Server {
	s := &Server{reg: reg, store: store}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/sensors", func(r chi.Router) {
		r.Get("/", s.handleListSensors)
		r.Get("/{id}", s.handleGetSensor)
		r.Get("/{id}/readings", s.handleSensorReadings)
	})

	s.router = r
	return s
}

// Handler returns the surface as an http.Handler, for http.Server.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sensorSummary struct {
	SensorID     uint16    `json:"sensor_id"`
	RoomID       uint32    `json:"room_id"`
	RunningAvg   float64   `json:"running_avg,omitempty"`
	AvgValid     bool      `json:"avg_valid"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

func (s *Server) summarize(sensorID uint16) sensorSummary {
	avg, valid := s.reg.Avg(sensorID)
	return sensorSummary{
		SensorID:     sensorID,
		RoomID:       s.reg.RoomID(sensorID),
		RunningAvg:   avg,
		AvgValid:     valid,
		LastModified: s.reg.LastModified(sensorID),
	}
}

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	ids := s.reg.Sensors()
	out := make([]sensorSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.summarize(id))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSensorID(w, r)
	if !ok {
		return
	}
	if !s.reg.Known(id) {
		notFound(w, "sensor not registered")
		return
	}
	writeJSON(w, http.StatusOK, s.summarize(id))
}

func (s *Server) handleSensorReadings(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSensorID(w, r)
	if !ok {
		return
	}
	if !s.reg.Known(id) {
		notFound(w, "sensor not registered")
		return
	}

	var filter storagemgr.QueryFilter

	if after := r.URL.Query().Get("after"); after != "" {
		unix, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			badRequest(w, "after must be a unix timestamp")
			return
		}
		filter.After = time.Unix(unix, 0)
	}

	if minValue := r.URL.Query().Get("min_value"); minValue != "" {
		v, err := strconv.ParseFloat(minValue, 64)
		if err != nil {
			badRequest(w, "min_value must be a number")
			return
		}
		filter.MinValue = v
		filter.HasMinValue = true
	}

	rows, err := s.store.Query(id, filter)
	if err != nil {
		internalServerError(w, "failed to query readings")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func parseSensorID(w http.ResponseWriter, r *http.Request) (uint16, bool) {
	raw := chi.URLParam(r, "id")
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		badRequest(w, "id must be a sensor id")
		return 0, false
	}
	return uint16(v), true
}
