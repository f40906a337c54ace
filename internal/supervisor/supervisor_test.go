package supervisor_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ekiciact/SensorNet-Manager/internal/gatewayerr"
	"github.com/ekiciact/SensorNet-Manager/internal/sbuffer"
	"github.com/ekiciact/SensorNet-Manager/internal/supervisor"
)

type fakeRunner struct {
	run func(ctx context.Context) error
}

func (f *fakeRunner) Run(ctx context.Context) error { return f.run(ctx) }

type fakeLogChannel struct {
	mu     sync.Mutex
	logs   []string
	closed bool
}

func (f *fakeLogChannel) Logf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, fmt.Sprintf(format, args...))
}

func (f *fakeLogChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func waitUntilClosed(t *testing.T, sb *sbuffer.Buffer) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := sb.Remove("dm"); errors.Is(err, sbuffer.End) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("buffer was never closed")
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunReturnsNilWhenAllComponentsSucceed(t *testing.T) {
	t.Parallel()

	sb := sbuffer.New(0, "dm", "sm")

	comp := supervisor.Components{
		ConnMgr:    &fakeRunner{run: func(ctx context.Context) error { return nil }},
		DataMgr:    &fakeRunner{run: func(ctx context.Context) error { _, _ = sb.Remove("dm"); return nil }},
		StorageMgr: &fakeRunner{run: func(ctx context.Context) error { _, _ = sb.Remove("sm"); return nil }},
		Buffer:     sb,
	}

	sv := supervisor.New(supervisor.Config{}, newTestLogger(), comp)

	if err := sv.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRunClosesBufferWhenConnMgrStops(t *testing.T) {
	t.Parallel()

	sb := sbuffer.New(0, "dm", "sm")
	dmDone := make(chan struct{})
	smDone := make(chan struct{})

	comp := supervisor.Components{
		ConnMgr: &fakeRunner{run: func(ctx context.Context) error { return nil }},
		DataMgr: &fakeRunner{run: func(ctx context.Context) error {
			defer close(dmDone)
			for {
				if _, err := sb.Remove("dm"); errors.Is(err, sbuffer.End) {
					return nil
				}
			}
		}},
		StorageMgr: &fakeRunner{run: func(ctx context.Context) error {
			defer close(smDone)
			for {
				if _, err := sb.Remove("sm"); errors.Is(err, sbuffer.End) {
					return nil
				}
			}
		}},
		Buffer: sb,
	}

	sv := supervisor.New(supervisor.Config{}, newTestLogger(), comp)

	done := make(chan error, 1)
	go func() { done <- sv.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after connmgr stopped")
	}

	<-dmDone
	<-smDone
}

func TestRunPropagatesFatalError(t *testing.T) {
	t.Parallel()

	sb := sbuffer.New(0, "dm", "sm")
	fatalErr := gatewayerr.Wrap("storagemgr", gatewayerr.KindStoreUnavailable, errors.New("store gone"))
	lc := &fakeLogChannel{}

	comp := supervisor.Components{
		ConnMgr: &fakeRunner{run: func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}},
		DataMgr: &fakeRunner{run: func(ctx context.Context) error {
			waitUntilClosed(t, sb)
			return nil
		}},
		StorageMgr: &fakeRunner{run: func(ctx context.Context) error { return fatalErr }},
		Buffer:     sb,
		LogChan:    lc,
	}

	sv := supervisor.New(supervisor.Config{}, newTestLogger(), comp)

	err := sv.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want non-nil")
	}
	if !errors.Is(err, fatalErr) {
		t.Errorf("Run() error = %v, want it to wrap %v", err, fatalErr)
	}

	if len(lc.logs) != 1 || !strings.HasPrefix(lc.logs[0], "FATAL") {
		t.Errorf("LogChan.logs = %v, want exactly one FATAL entry", lc.logs)
	}
	if !lc.closed {
		t.Error("LogChan was not closed")
	}
}

func TestRunStopsAdminServerWhenManagersFinish(t *testing.T) {
	t.Parallel()

	sb := sbuffer.New(0, "dm", "sm")
	adminStopped := make(chan struct{})

	comp := supervisor.Components{
		ConnMgr:    &fakeRunner{run: func(ctx context.Context) error { return nil }},
		DataMgr:    &fakeRunner{run: func(ctx context.Context) error { waitUntilClosed(t, sb); return nil }},
		StorageMgr: &fakeRunner{run: func(ctx context.Context) error { _, _ = sb.Remove("sm"); return nil }},
		Buffer:     sb,
		AdminServer: &fakeRunner{run: func(ctx context.Context) error {
			defer close(adminStopped)
			<-ctx.Done()
			return ctx.Err()
		}},
	}

	sv := supervisor.New(supervisor.Config{}, newTestLogger(), comp)

	done := make(chan error, 1)
	go func() { done <- sv.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return; admin server likely kept it blocked")
	}

	select {
	case <-adminStopped:
	case <-time.After(time.Second):
		t.Fatal("admin server was never stopped")
	}
}

func TestRunIgnoresNonFatalComponentError(t *testing.T) {
	t.Parallel()

	sb := sbuffer.New(0, "dm", "sm")
	nonFatal := gatewayerr.Wrap("connmgr", gatewayerr.KindProtocolDecode, errors.New("transient hiccup"))

	comp := supervisor.Components{
		ConnMgr:    &fakeRunner{run: func(ctx context.Context) error { return nonFatal }},
		DataMgr:    &fakeRunner{run: func(ctx context.Context) error { waitUntilClosed(t, sb); return nil }},
		StorageMgr: &fakeRunner{run: func(ctx context.Context) error { _, _ = sb.Remove("sm"); return nil }},
		Buffer:     sb,
	}

	sv := supervisor.New(supervisor.Config{}, newTestLogger(), comp)

	if err := sv.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil for a non-fatal component error", err)
	}
}
