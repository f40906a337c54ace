package storagemgr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ekiciact/SensorNet-Manager/internal/gatewayerr"
	"github.com/ekiciact/SensorNet-Manager/internal/sbuffer"
)

// ReaderID is the shared buffer reader slot the Storage Manager drains.
const ReaderID = "sm"

// EventLogger is the minimal logging contract storagemgr needs.
type EventLogger interface {
	Logf(format string, args ...any)
}

// Metrics is the minimal instrumentation contract storagemgr needs.
type Metrics interface {
	StoreInsertSucceeded()
	StoreInsertFailed()
	StoreReconnectAttempted()
}

// Config configures a Manager.
type Config struct {
	// Fresh truncates the table once, on the first successful connect.
	Fresh bool
	// ConnRetries bounds both startup connect attempts and consecutive
	// runtime insert failures before the Manager reports a fatal error.
	ConnRetries int
	// ConnBackoff is the delay between reconnect attempts.
	ConnBackoff time.Duration
}

// Manager is the Storage Manager.
type Manager struct {
	cfg   Config
	store Store
	sb    *sbuffer.Buffer
	log   EventLogger
	met   Metrics
}

// New creates a Manager that drains sb's SM reader slot into store.
func New(cfg Config, store Store, sb *sbuffer.Buffer, log EventLogger, met Metrics) *Manager {
	return &Manager{cfg: cfg, store: store, sb: sb, log: log, met: met}
}

// Run connects to the store (retrying up to cfg.ConnRetries times),
// ensures the schema, truncates when cfg.Fresh is set, and then drains
// sb's SM reader slot until it signals End. A run of cfg.ConnRetries
// consecutive insert failures escalates to a fatal error.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.connectWithRetry(ctx); err != nil {
		return err
	}
	defer func() {
		if err := m.store.Disconnect(); err != nil {
			m.log.Logf("STORE_DISCONNECT_ERROR: %v", err)
		}
	}()

	if err := m.store.EnsureSchema(); err != nil {
		return gatewayerr.Wrap("storagemgr", gatewayerr.KindStoreUnavailable, err)
	}

	if m.cfg.Fresh {
		if err := m.store.Truncate(); err != nil {
			return gatewayerr.Wrap("storagemgr", gatewayerr.KindStoreUnavailable, err)
		}
	}

	consecutiveFailures := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r, err := m.sb.Remove(ReaderID)
		if err != nil {
			if errors.Is(err, sbuffer.End) {
				return nil
			}
			return fmt.Errorf("storagemgr: remove: %w", err)
		}

		if err := m.store.Insert(r); err != nil {
			m.met.StoreInsertFailed()
			m.log.Logf("INSERT_FAILED sensor_id=%d: %v", r.SensorID, err)
			consecutiveFailures++

			if consecutiveFailures >= m.cfg.ConnRetries {
				return gatewayerr.Wrap("storagemgr", gatewayerr.KindStoreUnavailable,
					fmt.Errorf("exceeded %d consecutive insert failures", m.cfg.ConnRetries))
			}
			continue
		}

		consecutiveFailures = 0
		m.met.StoreInsertSucceeded()
	}
}

// connectWithRetry attempts to connect up to cfg.ConnRetries times,
// sleeping cfg.ConnBackoff between attempts.
func (m *Manager) connectWithRetry(ctx context.Context) error {
	var lastErr error

	for attempt := 0; attempt < m.cfg.ConnRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt > 0 {
			m.met.StoreReconnectAttempted()
			backoffSleep(m.cfg.ConnBackoff)
		}

		if err := m.store.Connect(); err != nil {
			lastErr = err
			m.log.Logf("STORE_UNAVAILABLE attempt=%d: %v", attempt+1, err)
			continue
		}

		return nil
	}

	return gatewayerr.Wrap("storagemgr", gatewayerr.KindStoreUnavailable,
		fmt.Errorf("unable to connect after %d attempts: %w", m.cfg.ConnRetries, lastErr))
}
