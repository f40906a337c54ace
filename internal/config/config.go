// Package config manages sensorgate configuration using koanf/v2.
//
// Supports YAML files, environment variables, and in-code defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete sensorgate configuration.
type Config struct {
	Admin     AdminConfig     `koanf:"admin"`
	Log       LogConfig       `koanf:"log"`
	Gateway   GatewayConfig   `koanf:"gateway" validate:"required"`
	Storage   StorageConfig   `koanf:"storage" validate:"required"`
	LogChan   LogChanConfig   `koanf:"logchan"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// AdminConfig holds the read-only admin/metrics HTTP surface configuration.
type AdminConfig struct {
	// Addr is the HTTP listen address (e.g., ":9100").
	Addr string `koanf:"addr"`
}

// LogConfig holds the process-lifecycle logging configuration.
// This is distinct from the Log Channel, which carries domain events.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// GatewayConfig holds the Connection Manager / Data Manager parameters.
type GatewayConfig struct {
	// ListenPort is the TCP port sensor nodes connect to.
	ListenPort int `koanf:"listen_port" validate:"required,min=1,max=65535"`

	// IdleTimeout is how long a connection may sit without a record before
	// the Connection Manager evicts it.
	IdleTimeout time.Duration `koanf:"idle_timeout" validate:"required"`

	// RunAvgWindow is the number of samples retained per sensor for the
	// running average (the ring buffer size).
	RunAvgWindow int `koanf:"run_avg_window" validate:"required,min=1"`

	// SetMinTemp is the lower threshold; an average below this value
	// produces a TOO_COLD event.
	SetMinTemp float64 `koanf:"set_min_temp"`

	// SetMaxTemp is the upper threshold; an average above this value
	// produces a TOO_HOT event.
	SetMaxTemp float64 `koanf:"set_max_temp"`

	// SensorMapPath is the path to the sensor_id -> room_id mapping file
	// loaded once at startup by the Sensor Map Registry.
	SensorMapPath string `koanf:"sensor_map_path" validate:"required"`
}

// StorageConfig holds the Storage Manager's relational store parameters.
type StorageConfig struct {
	// DSN selects the store dialect. A bare path opens an embedded SQLite
	// file; a "postgres://" URL opens Postgres.
	DSN string `koanf:"dsn" validate:"required"`

	// TableName is the table readings are written to.
	TableName string `koanf:"table_name" validate:"required"`

	// Fresh truncates TableName once on startup before the Storage
	// Manager begins draining the shared buffer.
	Fresh bool `koanf:"fresh"`

	// ConnRetries is the number of consecutive reconnect attempts
	// tolerated before the Storage Manager reports a fatal condition.
	ConnRetries int `koanf:"conn_retries" validate:"required,min=1"`

	// ConnBackoff is the delay between reconnect attempts.
	ConnBackoff time.Duration `koanf:"conn_backoff" validate:"required"`
}

// LogChanConfig holds the Log Channel named-pipe parameters.
type LogChanConfig struct {
	// FIFOPath is the filesystem path of the named pipe between the
	// gateway process and the log-writer child.
	FIFOPath string `koanf:"fifo_path" validate:"required"`

	// LogFilePath is where the log-writer child appends sequenced,
	// timestamped log lines.
	LogFilePath string `koanf:"log_file_path" validate:"required"`

	// MaxLogBytes bounds a single log message's payload length.
	MaxLogBytes int `koanf:"max_log_bytes" validate:"required,min=1"`

	// WriterBinPath is the log-writer child binary, run as given: a bare
	// name (the default, "sensorgate-logwriter") is looked up on PATH.
	WriterBinPath string `koanf:"writer_bin_path"`
}

// TelemetryConfig holds optional, off-by-default observability wiring.
type TelemetryConfig struct {
	// ProfilingEnabled starts a continuous profiler against
	// ServerAddr when true. Disabled by default.
	ProfilingEnabled bool `koanf:"profiling_enabled"`

	// ServerAddr is the Pyroscope server address to ship profiles to.
	ServerAddr string `koanf:"server_addr"`

	// AppName tags profiles with an application name.
	AppName string `koanf:"app_name"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults, matching
// the constants the original sensor gateway was compiled with.
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Addr: ":9100",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Gateway: GatewayConfig{
			ListenPort:    1234,
			IdleTimeout:   5 * time.Second,
			RunAvgWindow:  5,
			SetMinTemp:    15.0,
			SetMaxTemp:    25.0,
			SensorMapPath: "room_sensor.map",
		},
		Storage: StorageConfig{
			DSN:         "sensor_data.db",
			TableName:   "sensor_data",
			Fresh:       false,
			ConnRetries: 3,
			ConnBackoff: 1 * time.Second,
		},
		LogChan: LogChanConfig{
			FIFOPath:      "/tmp/sensorgate.logfifo",
			LogFilePath:   "gateway.log",
			MaxLogBytes:   256,
			WriterBinPath: "sensorgate-logwriter",
		},
		Telemetry: TelemetryConfig{
			ProfilingEnabled: false,
			AppName:          "sensorgate",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for sensorgate configuration.
// Variables are named SENSORGATE_<section>_<key>, e.g.
// SENSORGATE_GATEWAY_LISTEN_PORT.
const envPrefix = "SENSORGATE_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (SENSORGATE_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults. path may be empty, in
// which case only defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms SENSORGATE_GATEWAY_LISTEN_PORT -> gateway.listen_port.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	// Only the first underscore separates the section from the key; keys
	// such as listen_port keep their own underscores.
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"admin.addr":                 defaults.Admin.Addr,
		"log.level":                  defaults.Log.Level,
		"log.format":                 defaults.Log.Format,
		"gateway.listen_port":        defaults.Gateway.ListenPort,
		"gateway.idle_timeout":       defaults.Gateway.IdleTimeout.String(),
		"gateway.run_avg_window":     defaults.Gateway.RunAvgWindow,
		"gateway.set_min_temp":       defaults.Gateway.SetMinTemp,
		"gateway.set_max_temp":       defaults.Gateway.SetMaxTemp,
		"gateway.sensor_map_path":    defaults.Gateway.SensorMapPath,
		"storage.dsn":                defaults.Storage.DSN,
		"storage.table_name":         defaults.Storage.TableName,
		"storage.fresh":              defaults.Storage.Fresh,
		"storage.conn_retries":       defaults.Storage.ConnRetries,
		"storage.conn_backoff":       defaults.Storage.ConnBackoff.String(),
		"logchan.fifo_path":          defaults.LogChan.FIFOPath,
		"logchan.log_file_path":      defaults.LogChan.LogFilePath,
		"logchan.max_log_bytes":      defaults.LogChan.MaxLogBytes,
		"logchan.writer_bin_path":    defaults.LogChan.WriterBinPath,
		"telemetry.profiling_enabled": defaults.Telemetry.ProfilingEnabled,
		"telemetry.app_name":         defaults.Telemetry.AppName,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors Validate reports by hand.
var (
	// ErrInvalidTempRange indicates SetMinTemp is not below SetMaxTemp.
	ErrInvalidTempRange = errors.New("gateway.set_min_temp must be less than gateway.set_max_temp")

	// ErrInvalidRunAvgWindow indicates the averaging window is non-positive.
	ErrInvalidRunAvgWindow = errors.New("gateway.run_avg_window must be >= 1")
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for structural and cross-field errors.
// A non-positive averaging window is checked first and reported as
// ErrInvalidRunAvgWindow; struct-tag constraints (required, min, max) are
// checked next via go-playground/validator; invariants that span multiple
// fields are checked afterward by hand.
func Validate(cfg *Config) error {
	if cfg.Gateway.RunAvgWindow < 1 {
		return ErrInvalidRunAvgWindow
	}

	if err := structValidator.Struct(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if cfg.Gateway.SetMinTemp >= cfg.Gateway.SetMaxTemp {
		return ErrInvalidTempRange
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
