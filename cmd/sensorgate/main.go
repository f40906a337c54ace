// Command sensorgate is the sensor gateway daemon: it accepts sensor
// connections, enriches readings against the sensor map, persists them,
// and logs domain events through the Log Channel's child process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ekiciact/SensorNet-Manager/internal/adminapi"
	"github.com/ekiciact/SensorNet-Manager/internal/config"
	"github.com/ekiciact/SensorNet-Manager/internal/connmgr"
	"github.com/ekiciact/SensorNet-Manager/internal/datamgr"
	"github.com/ekiciact/SensorNet-Manager/internal/logchan"
	gatewaymetrics "github.com/ekiciact/SensorNet-Manager/internal/metrics"
	"github.com/ekiciact/SensorNet-Manager/internal/registry"
	"github.com/ekiciact/SensorNet-Manager/internal/sbuffer"
	"github.com/ekiciact/SensorNet-Manager/internal/storagemgr"
	"github.com/ekiciact/SensorNet-Manager/internal/supervisor"
	"github.com/ekiciact/SensorNet-Manager/internal/telemetry"
	appversion "github.com/ekiciact/SensorNet-Manager/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	showVersion := flag.Bool("version", false, "print build version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(appversion.Full("sensorgate"))
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logger := newLogger(cfg.Log)

	if flag.NArg() > 0 {
		port, err := strconv.Atoi(flag.Arg(0))
		if err != nil || port < 1 || port > 65535 {
			logger.Error("invalid listen port argument", slog.String("arg", flag.Arg(0)))
			return 1
		}
		cfg.Gateway.ListenPort = port
	}

	logger.Info("sensorgate starting",
		slog.Int("listen_port", cfg.Gateway.ListenPort),
		slog.String("admin_addr", cfg.Admin.Addr),
	)

	reg, err := loadSensorMap(cfg.Gateway.SensorMapPath, cfg.Gateway.RunAvgWindow, logger)
	if err != nil {
		logger.Error("failed to load sensor map", slog.String("error", err.Error()))
		return 1
	}

	sb := sbuffer.New(0, datamgr.ReaderID, storagemgr.ReaderID)

	promReg := prometheus.NewRegistry()
	collector := gatewaymetrics.NewCollector(promReg)

	logWriter, err := logchan.Open(cfg.LogChan.FIFOPath, cfg.LogChan.MaxLogBytes)
	if err != nil {
		logger.Error("failed to open log channel", slog.String("error", err.Error()))
		return 1
	}

	logChild, err := startLogWriterChild(cfg.LogChan)
	if err != nil {
		logger.Error("failed to start log-writer child", slog.String("error", err.Error()))
		_ = logWriter.Close()
		return 1
	}

	shutdownProfiling, err := telemetry.StartProfiling(telemetry.ProfilingConfig{
		Enabled:     cfg.Telemetry.ProfilingEnabled,
		ServiceName: cfg.Telemetry.AppName,
		Endpoint:    cfg.Telemetry.ServerAddr,
	})
	if err != nil {
		logger.Error("failed to start profiling", slog.String("error", err.Error()))
		return 1
	}
	defer shutdownProfiling()

	cm, err := connmgr.New(connmgr.Config{
		ListenPort:  cfg.Gateway.ListenPort,
		IdleTimeout: cfg.Gateway.IdleTimeout,
	}, sb, logWriter, collector)
	if err != nil {
		logger.Error("failed to create connection manager", slog.String("error", err.Error()))
		return 1
	}
	defer cm.Close()

	dm := datamgr.New(datamgr.Config{
		SetMinTemp: cfg.Gateway.SetMinTemp,
		SetMaxTemp: cfg.Gateway.SetMaxTemp,
	}, sb, reg, logWriter, collector)

	store := storagemgr.NewGormStore(cfg.Storage.DSN, cfg.Storage.TableName)
	sm := storagemgr.New(storagemgr.Config{
		Fresh:       cfg.Storage.Fresh,
		ConnRetries: cfg.Storage.ConnRetries,
		ConnBackoff: cfg.Storage.ConnBackoff,
	}, store, sb, logWriter, collector)

	admin := adminapi.New(reg, store, promReg)
	adminSrv := &httpRunner{addr: cfg.Admin.Addr, handler: admin.Handler(), log: logger}

	sv := supervisor.New(supervisor.Config{}, logger, supervisor.Components{
		ConnMgr:     cm,
		DataMgr:     dm,
		StorageMgr:  sm,
		Buffer:      sb,
		LogChan:     logWriter,
		LogChild:    logChild,
		AdminServer: adminSrv,
	})

	if err := sv.Run(context.Background()); err != nil {
		logger.Error("sensorgate exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("sensorgate stopped")
	return 0
}

// loadSensorMap opens path and populates a Registry with a running-average
// window of windowSize samples per sensor.
func loadSensorMap(path string, windowSize int, logger *slog.Logger) (*registry.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sensor map %s: %w", path, err)
	}
	defer f.Close()

	reg := registry.New(windowSize)
	if err := reg.LoadMap(f, logger); err != nil {
		return nil, fmt.Errorf("load sensor map %s: %w", path, err)
	}
	return reg, nil
}

// startLogWriterChild forks the log-writer binary configured by cfg,
// wiring its stderr to this process's for visibility.
func startLogWriterChild(cfg config.LogChanConfig) (*exec.Cmd, error) {
	cmd := exec.Command(cfg.WriterBinPath,
		"-fifo", cfg.FIFOPath,
		"-logfile", cfg.LogFilePath,
		"-max-message-bytes", strconv.Itoa(cfg.MaxLogBytes),
	)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start log-writer child: %w", err)
	}
	return cmd, nil
}

// newLogger builds the process-lifecycle logger per cfg. This is
// distinct from the Log Channel, which carries domain events to
// gateway.log through the log-writer child.
func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// httpRunner adapts an http.Server to supervisor.Runner: Run blocks
// serving until ctx is cancelled, then shuts the server down gracefully.
type httpRunner struct {
	addr    string
	handler http.Handler
	log     *slog.Logger
}

func (h *httpRunner) Run(ctx context.Context) error {
	srv := &http.Server{Addr: h.addr, Handler: h.handler}

	errCh := make(chan error, 1)
	go func() {
		h.log.Info("admin server listening", slog.String("addr", h.addr))
		ln, err := net.Listen("tcp", h.addr)
		if err != nil {
			errCh <- err
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin server shutdown: %w", err)
		}
		return nil
	}
}
