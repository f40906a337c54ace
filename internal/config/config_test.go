package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ekiciact/SensorNet-Manager/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Admin.Addr != ":9100" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":9100")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Gateway.ListenPort != 1234 {
		t.Errorf("Gateway.ListenPort = %d, want %d", cfg.Gateway.ListenPort, 1234)
	}

	if cfg.Gateway.IdleTimeout != 5*time.Second {
		t.Errorf("Gateway.IdleTimeout = %v, want %v", cfg.Gateway.IdleTimeout, 5*time.Second)
	}

	if cfg.Gateway.RunAvgWindow != 5 {
		t.Errorf("Gateway.RunAvgWindow = %d, want %d", cfg.Gateway.RunAvgWindow, 5)
	}

	if cfg.Storage.ConnRetries != 3 {
		t.Errorf("Storage.ConnRetries = %d, want %d", cfg.Storage.ConnRetries, 3)
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
admin:
  addr: ":9200"
log:
  level: "debug"
  format: "text"
gateway:
  listen_port: 4321
  idle_timeout: "10s"
  run_avg_window: 10
  set_min_temp: 10
  set_max_temp: 30
  sensor_map_path: "rooms.map"
storage:
  dsn: "postgres://localhost/sensors"
  table_name: "readings"
  conn_retries: 5
  conn_backoff: "1s"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Admin.Addr != ":9200" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":9200")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Gateway.ListenPort != 4321 {
		t.Errorf("Gateway.ListenPort = %d, want %d", cfg.Gateway.ListenPort, 4321)
	}

	if cfg.Gateway.IdleTimeout != 10*time.Second {
		t.Errorf("Gateway.IdleTimeout = %v, want %v", cfg.Gateway.IdleTimeout, 10*time.Second)
	}

	if cfg.Gateway.RunAvgWindow != 10 {
		t.Errorf("Gateway.RunAvgWindow = %d, want %d", cfg.Gateway.RunAvgWindow, 10)
	}

	if cfg.Storage.DSN != "postgres://localhost/sensors" {
		t.Errorf("Storage.DSN = %q, want %q", cfg.Storage.DSN, "postgres://localhost/sensors")
	}

	if cfg.Storage.ConnRetries != 5 {
		t.Errorf("Storage.ConnRetries = %d, want %d", cfg.Storage.ConnRetries, 5)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override gateway.listen_port and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
gateway:
  listen_port: 9999
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	// Overridden values.
	if cfg.Gateway.ListenPort != 9999 {
		t.Errorf("Gateway.ListenPort = %d, want %d", cfg.Gateway.ListenPort, 9999)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Admin.Addr != ":9100" {
		t.Errorf("Admin.Addr = %q, want default %q", cfg.Admin.Addr, ":9100")
	}

	if cfg.Gateway.RunAvgWindow != 5 {
		t.Errorf("Gateway.RunAvgWindow = %d, want default %d", cfg.Gateway.RunAvgWindow, 5)
	}

	if cfg.Storage.TableName != "sensor_data" {
		t.Errorf("Storage.TableName = %q, want default %q", cfg.Storage.TableName, "sensor_data")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "min temp not below max temp",
			modify: func(cfg *config.Config) {
				cfg.Gateway.SetMinTemp = 25
				cfg.Gateway.SetMaxTemp = 25
			},
			wantErr: config.ErrInvalidTempRange,
		},
		{
			name: "min temp above max temp",
			modify: func(cfg *config.Config) {
				cfg.Gateway.SetMinTemp = 30
				cfg.Gateway.SetMaxTemp = 10
			},
			wantErr: config.ErrInvalidTempRange,
		},
		{
			name: "zero run avg window",
			modify: func(cfg *config.Config) {
				cfg.Gateway.RunAvgWindow = 0
			},
			wantErr: config.ErrInvalidRunAvgWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStructTags(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Gateway.ListenPort = 0

	if err := config.Validate(cfg); err == nil {
		t.Fatal("Validate() returned nil for listen_port=0, want error")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}

	if cfg.Gateway.ListenPort != 1234 {
		t.Errorf("Gateway.ListenPort = %d, want default %d", cfg.Gateway.ListenPort, 1234)
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
gateway:
  listen_port: 1234
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("SENSORGATE_GATEWAY_LISTEN_PORT", "7000")
	t.Setenv("SENSORGATE_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Gateway.ListenPort != 7000 {
		t.Errorf("Gateway.ListenPort = %d, want %d (from env)", cfg.Gateway.ListenPort, 7000)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesStorage(t *testing.T) {
	yamlContent := `
gateway:
  listen_port: 1234
storage:
  dsn: "sensor_data.db"
  table_name: "sensor_data"
  conn_retries: 3
  conn_backoff: "5s"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("SENSORGATE_STORAGE_DSN", "postgres://localhost/override")
	t.Setenv("SENSORGATE_STORAGE_TABLE_NAME", "custom_readings")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Storage.DSN != "postgres://localhost/override" {
		t.Errorf("Storage.DSN = %q, want %q (from env)", cfg.Storage.DSN, "postgres://localhost/override")
	}

	if cfg.Storage.TableName != "custom_readings" {
		t.Errorf("Storage.TableName = %q, want %q (from env)", cfg.Storage.TableName, "custom_readings")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "sensorgate.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
