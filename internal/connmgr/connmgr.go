// Package connmgr implements the Connection Manager: it accepts sensor TCP
// connections, decodes fixed-width records, detects idle peers, and
// publishes decoded records into the shared buffer.
//
// The original multiplexes every socket through a single select() call
// plus a manual idle sweep. Go's accept-loop-plus-goroutine-per-connection
// style achieves the same externally observable contract — each idle peer
// is evicted exactly once, and the manager as a whole terminates once no
// peer remains and the listening socket itself has been idle past the
// timeout — without a hand-rolled readiness loop.
package connmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ekiciact/SensorNet-Manager/internal/gatewayerr"
	"github.com/ekiciact/SensorNet-Manager/internal/record"
	"github.com/ekiciact/SensorNet-Manager/internal/sbuffer"
)

// PeerState is a sensor connection's lifecycle state.
type PeerState int

const (
	// StateOpening is entered immediately after accept, before any record
	// has been decoded.
	StateOpening PeerState = iota
	// StateActive is entered once at least one record has been decoded.
	StateActive
	// StateClosing is the terminal state.
	StateClosing
)

func (s PeerState) String() string {
	switch s {
	case StateOpening:
		return "OPENING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// CloseReason explains why a peer connection was closed, for logging.
type CloseReason string

// Close reasons emitted to the log channel.
const (
	ReasonPeerClosed    CloseReason = "PEER_CLOSED"
	ReasonDecodeError   CloseReason = "DECODE_ERROR"
	ReasonIdleEviction  CloseReason = "IDLE_EVICTION"
	ReasonAcceptFailure CloseReason = "ACCEPT_FAILURE"
)

// EventLogger is the minimal logging contract connmgr needs. The Log
// Channel's writer side implements this.
type EventLogger interface {
	Logf(format string, args ...any)
}

// Metrics is the minimal instrumentation contract connmgr needs.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	IdleEvicted()
	RecordReceived()
	RecordDropped(reason string)
}

// Config configures a Manager.
type Config struct {
	// ListenPort is the TCP port to accept sensor connections on.
	ListenPort int
	// IdleTimeout evicts a peer (and, absent any peer, the manager itself)
	// after this long without traffic.
	IdleTimeout time.Duration
	// TracePath is the receive-trace debug file; empty disables tracing.
	TracePath string
}

// Manager is the Connection Manager.
type Manager struct {
	cfg     Config
	sb      *sbuffer.Buffer
	log     EventLogger
	metrics Metrics

	trace   io.WriteCloser
	traceMu sync.Mutex

	activePeers int64        // atomic
	lastActive  atomic.Int64 // unix nanos, covers listener and peer activity
}

// New creates a Manager that accepts sensor connections and inserts
// decoded records into sb.
func New(cfg Config, sb *sbuffer.Buffer, log EventLogger, metrics Metrics) (*Manager, error) {
	m := &Manager{
		cfg:     cfg,
		sb:      sb,
		log:     log,
		metrics: metrics,
	}

	if cfg.TracePath != "" {
		f, err := os.OpenFile(cfg.TracePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("connmgr: open trace file: %w", err)
		}
		m.trace = f
	}

	m.lastActive.Store(time.Now().UnixNano())

	return m, nil
}

// Close releases the trace file, if open.
func (m *Manager) Close() error {
	if m.trace != nil {
		return m.trace.Close()
	}
	return nil
}

// Run accepts sensor connections on cfg.ListenPort until ctx is cancelled,
// or until no peer has been active for IdleTimeout and the listening
// socket itself has likewise been idle. On return, the shared buffer's CM
// producer side is done; the caller (Supervisor) is responsible for
// deciding when to Close the buffer once every producer has stopped.
func (m *Manager) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", m.cfg.ListenPort))
	if err != nil {
		return gatewayerr.Wrap("connmgr", gatewayerr.KindFatal, fmt.Errorf("listen: %w", err))
	}
	defer ln.Close()

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return gatewayerr.Wrap("connmgr", gatewayerr.KindFatal, errors.New("listener is not *net.TCPListener"))
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	sweepInterval := m.cfg.IdleTimeout
	if sweepInterval <= 0 {
		sweepInterval = time.Second
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := tcpLn.SetDeadline(time.Now().Add(sweepInterval)); err != nil {
			return gatewayerr.Wrap("connmgr", gatewayerr.KindFatal, fmt.Errorf("set accept deadline: %w", err))
		}

		conn, err := tcpLn.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if m.idleAndNoPeers() {
					return nil
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			m.log.Logf("ACCEPT_FAILURE: %v", err)
			continue
		}

		m.touch()
		atomic.AddInt64(&m.activePeers, 1)
		m.metrics.ConnectionOpened()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer atomic.AddInt64(&m.activePeers, -1)
			defer m.metrics.ConnectionClosed()
			m.handlePeer(ctx, conn)
		}()
	}
}

func (m *Manager) idleAndNoPeers() bool {
	if atomic.LoadInt64(&m.activePeers) > 0 {
		return false
	}
	idleFor := time.Since(time.Unix(0, m.lastActive.Load()))
	return idleFor >= m.cfg.IdleTimeout
}

func (m *Manager) touch() {
	m.lastActive.Store(time.Now().UnixNano())
}

// handlePeer reads records from conn until the peer closes, a decode
// error occurs, or the peer goes idle past IdleTimeout.
func (m *Manager) handlePeer(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	addr := conn.RemoteAddr().String()
	state := StateOpening
	var declaredSensorID uint16
	var haveDeclared bool

	reason := ReasonPeerClosed

	for {
		if ctx.Err() != nil {
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(m.cfg.IdleTimeout)); err != nil {
			return
		}

		r, err := record.Decode(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				reason = ReasonPeerClosed
			} else if isTimeout(err) {
				reason = ReasonIdleEviction
				m.metrics.IdleEvicted()
			} else {
				reason = ReasonDecodeError
				m.metrics.RecordDropped("decode_error")
			}
			break
		}

		m.touch()
		state = StateActive
		m.metrics.RecordReceived()

		if !haveDeclared || r.SensorID != declaredSensorID {
			declaredSensorID = r.SensorID
			haveDeclared = true
		}

		m.appendTrace(r)

		if err := m.sb.Insert(r); err != nil {
			m.metrics.RecordDropped("buffer_rejected")
			m.log.Logf("INSERT_FAILED peer=%s sensor_id=%d: %v", addr, r.SensorID, err)
		}
	}

	state = StateClosing
	m.log.Logf("%s peer=%s sensor_id=%d state=%s", reason, addr, declaredSensorID, state)
}

func (m *Manager) appendTrace(r record.Reading) {
	if m.trace == nil {
		return
	}

	m.traceMu.Lock()
	defer m.traceMu.Unlock()

	fmt.Fprintf(m.trace, "%d %v %d\n", r.SensorID, r.Value, r.TS.Unix())
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
