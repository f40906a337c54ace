// Package telemetry wires optional continuous profiling into the gateway.
// It is off by default: unlike internal/metrics, which is always-on domain
// instrumentation, profiling is a debugging aid an operator opts into.
package telemetry

import (
	"fmt"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig configures the optional Pyroscope profiler.
type ProfilingConfig struct {
	// Enabled gates the whole package; StartProfiling is a no-op when false.
	Enabled bool
	// ServiceName is the application name reported to Pyroscope.
	ServiceName string
	// ServiceVersion is reported as a "version" tag.
	ServiceVersion string
	// Endpoint is the Pyroscope server address (e.g. "http://localhost:4040").
	Endpoint string
	// ProfileTypes selects which profiles to collect. A nil slice defaults
	// to cpu and the two in-use memory profiles.
	ProfileTypes []string
}

var defaultProfileTypes = []string{"cpu", "inuse_objects", "inuse_space"}

// StartProfiling starts the Pyroscope profiler when cfg.Enabled is true,
// returning a shutdown function safe to call unconditionally (including
// when profiling was never started). Returns an error only if Pyroscope
// itself fails to start.
func StartProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	if !cfg.Enabled {
		return func() error { return nil }, nil
	}

	profileTypes := cfg.ProfileTypes
	if len(profileTypes) == 0 {
		profileTypes = defaultProfileTypes
	}

	parsed := make([]pyroscope.ProfileType, 0, len(profileTypes))
	for _, pt := range profileTypes {
		profileType, err := parseProfileType(pt)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		parsed = append(parsed, profileType)
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            map[string]string{"version": cfg.ServiceVersion},
		ProfileTypes:    parsed,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: start profiler: %w", err)
	}

	return profiler.Stop, nil
}

func parseProfileType(pt string) (pyroscope.ProfileType, error) {
	switch pt {
	case "cpu":
		return pyroscope.ProfileCPU, nil
	case "alloc_objects":
		return pyroscope.ProfileAllocObjects, nil
	case "alloc_space":
		return pyroscope.ProfileAllocSpace, nil
	case "inuse_objects":
		return pyroscope.ProfileInuseObjects, nil
	case "inuse_space":
		return pyroscope.ProfileInuseSpace, nil
	case "goroutines":
		return pyroscope.ProfileGoroutines, nil
	case "mutex_count":
		return pyroscope.ProfileMutexCount, nil
	case "mutex_duration":
		return pyroscope.ProfileMutexDuration, nil
	case "block_count":
		return pyroscope.ProfileBlockCount, nil
	case "block_duration":
		return pyroscope.ProfileBlockDuration, nil
	default:
		return pyroscope.ProfileCPU, fmt.Errorf("unknown profile type: %s", pt)
	}
}
