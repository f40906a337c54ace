// Package supervisor starts the Connection, Data, and Storage Managers and
// coordinates their shutdown: the first fatal failure from any of the three
// managers tears down the rest, drains whatever the shared buffer still
// holds, closes the Log Channel, and waits for the log-writer child before
// returning. The Log Channel and the log-writer child are opened and
// started by the caller and handed in through Components.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekiciact/SensorNet-Manager/internal/gatewayerr"
	"github.com/ekiciact/SensorNet-Manager/internal/sbuffer"
)

// Runner is one of the three concurrent activities the Supervisor starts:
// the Connection, Data, and Storage Managers all satisfy this.
type Runner interface {
	Run(ctx context.Context) error
}

// EventLogger is the subset of logchan.Writer the Supervisor needs to
// write its own final fatal entry to the Log Channel.
type EventLogger interface {
	Logf(format string, args ...any)
}

// Closer is the subset of logchan.Writer the Supervisor needs to end the
// Log Channel once every other component has stopped.
type Closer interface {
	Close() error
}

// LogChannel is the full Log Channel contract the Supervisor depends on.
type LogChannel interface {
	EventLogger
	Closer
}

// Config configures a Supervisor.
type Config struct {
	// ChildShutdownGrace bounds how long Run waits for the log-writer
	// child to exit after the pipe is closed before giving up on it.
	ChildShutdownGrace time.Duration
}

// Components are the activities a Supervisor coordinates. ConnMgr is the
// shared buffer's sole producer; DataMgr and StorageMgr are its two
// readers. LogChan is closed only after all three have stopped, signaling
// EOF to LogChild.
type Components struct {
	ConnMgr    Runner
	DataMgr    Runner
	StorageMgr Runner
	Buffer     *sbuffer.Buffer
	LogChan    LogChannel
	LogChild   *exec.Cmd

	// AdminServer, if non-nil, is run alongside CM/DM/SM for the lifetime
	// of the gateway process. Unlike the three managers, its exit never
	// closes Buffer: it has no producer/reader relationship with it.
	AdminServer Runner
}

// Supervisor owns the lifetime of one gateway process instance.
type Supervisor struct {
	cfg  Config
	log  *slog.Logger
	comp Components
}

// New creates a Supervisor. comp.LogChild may be nil if no log-writer
// child was forked (e.g. it is run out-of-process by other means).
func New(cfg Config, log *slog.Logger, comp Components) *Supervisor {
	if cfg.ChildShutdownGrace <= 0 {
		cfg.ChildShutdownGrace = 5 * time.Second
	}
	return &Supervisor{cfg: cfg, log: log, comp: comp}
}

// Run starts the Connection, Data, and Storage Managers concurrently and
// blocks until all three have stopped. A SIGINT or SIGTERM, or a fatal
// error from any manager, cancels the others; in every case the shared
// buffer is closed so in-flight records already queued can still drain to
// readers that are still running, and the log-writer child is waited for
// before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	var closeBufferOnce sync.Once
	closeBuffer := func() { closeBufferOnce.Do(s.comp.Buffer.Close) }

	s.runComponent(g, gCtx, "connmgr", s.comp.ConnMgr, closeBuffer)
	s.runComponent(g, gCtx, "datamgr", s.comp.DataMgr, closeBuffer)
	s.runComponent(g, gCtx, "storagemgr", s.comp.StorageMgr, closeBuffer)

	// The admin server has no natural end of its own (it serves until
	// told to stop), so it gets a context derived from gCtx but cancelled
	// the moment CM/DM/SM are all done, rather than being a fourth
	// errgroup member that would otherwise block g.Wait() forever.
	adminCtx, cancelAdmin := context.WithCancel(gCtx)
	defer cancelAdmin()

	var adminWG sync.WaitGroup
	if s.comp.AdminServer != nil {
		adminWG.Add(1)
		go func() {
			defer adminWG.Done()
			if err := s.comp.AdminServer.Run(adminCtx); err != nil {
				s.log.Warn("admin server exited with error", slog.String("error", err.Error()))
				return
			}
			s.log.Info("admin server stopped")
		}()
	}

	runErr := g.Wait()

	// Every producer and reader has stopped; closing here is a no-op if a
	// fatal failure already triggered it, and otherwise covers the
	// all-succeeded shutdown path.
	closeBuffer()

	cancelAdmin()
	adminWG.Wait()

	if runErr != nil && s.comp.LogChan != nil {
		s.comp.LogChan.Logf("FATAL kind=%s: %v", gatewayerr.KindOf(runErr), runErr)
	}

	s.shutdownLogChannel()

	if runErr != nil {
		return fmt.Errorf("supervisor: %w", runErr)
	}
	return nil
}

// runComponent registers one Runner with g. Every component, whether it
// returns nil, a logged error, or a fatal one, closes the shared buffer on
// its way out so the remaining readers are never left blocked forever.
func (s *Supervisor) runComponent(g *errgroup.Group, ctx context.Context, name string, r Runner, closeBuffer func()) {
	g.Go(func() error {
		defer closeBuffer()

		err := r.Run(ctx)
		if err == nil {
			s.log.Info("component stopped", slog.String("component", name))
			return nil
		}

		if gatewayerr.Fatal(err) {
			s.log.Error("component failed fatally",
				slog.String("component", name),
				slog.String("kind", gatewayerr.KindOf(err).String()),
				slog.String("error", err.Error()),
			)
			return err
		}

		s.log.Warn("component exited with error",
			slog.String("component", name),
			slog.String("error", err.Error()),
		)
		return nil
	})
}

// shutdownLogChannel closes the Log Channel writer, which signals EOF to
// the log-writer child, then waits up to ChildShutdownGrace for the child
// to exit.
func (s *Supervisor) shutdownLogChannel() {
	if s.comp.LogChan != nil {
		if err := s.comp.LogChan.Close(); err != nil {
			s.log.Warn("log channel close error", slog.String("error", err.Error()))
		}
	}

	if s.comp.LogChild == nil {
		return
	}

	done := make(chan error, 1)
	go func() { done <- s.comp.LogChild.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warn("log-writer child exited with error", slog.String("error", err.Error()))
		}
	case <-time.After(s.cfg.ChildShutdownGrace):
		s.log.Warn("log-writer child did not exit within grace period, killing")
		if err := s.comp.LogChild.Process.Kill(); err != nil {
			s.log.Warn("failed to kill log-writer child", slog.String("error", err.Error()))
		}
		<-done
	}
}
