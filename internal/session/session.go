// Package session represents one chat participant's connection from
// accept to close: identity, display name, a serialised outbound
// writer shared by every broadcaster, and the lifecycle state.
package session

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	ncerr "gochat/internal/errors"
	"gochat/internal/metrics"
	"gochat/internal/protocol"
	"gochat/internal/retry"
	"gochat/util"
)

// State is a step of the per-connection state machine.
type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options tune a Session.  The zero value is usable.
type Options struct {
	// WriteTimeout bounds a single outbound line; 0 means no deadline.
	WriteTimeout time.Duration
	// Breaker configures the delivery circuit breaker (nil = defaults).
	Breaker *retry.CircuitBreakerConfig
	Metrics *metrics.Collector
	Logger  *util.Logger
}

// Session is the server-side state of one connection.  Send and
// Deliver are safe to call from any goroutine; ReadLine and Handshake
// belong to the connection's own goroutine.
type Session struct {
	ID uuid.UUID

	conn   net.Conn
	remote string
	lines  *protocol.LineReader

	// name and joinedAt are written once by Handshake before the session
	// is published to other goroutines.
	name     string
	joinedAt time.Time

	state   atomic.Int32
	closed  atomic.Bool
	once    sync.Once
	writeMu sync.Mutex

	writeTimeout time.Duration
	breaker      *retry.CircuitBreaker
	metrics      *metrics.Collector
	logger       *util.Logger
}

// New wraps an accepted connection.  The session starts in
// StateConnecting.
func New(conn net.Conn, opts Options) *Session {
	id := uuid.New()
	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	logger = logger.Named("sess " + id.String()[:8])

	s := &Session{
		ID:           id,
		conn:         conn,
		remote:       conn.RemoteAddr().String(),
		lines:        protocol.NewLineReader(conn),
		writeTimeout: opts.WriteTimeout,
		metrics:      opts.Metrics,
		logger:       logger,
	}

	bcfg := retry.DefaultCircuitBreakerConfig()
	if opts.Breaker != nil {
		c := *opts.Breaker
		bcfg = &c
	}
	bcfg.OnStateChange = func(from, to retry.State) {
		logger.Verbose("delivery breaker %s → %s", from, to)
	}
	s.breaker = retry.NewCircuitBreaker(bcfg)
	return s
}

// Name returns the display name chosen during the handshake.
func (s *Session) Name() string { return s.name }

// JoinedAt returns when the handshake completed (zero before that).
func (s *Session) JoinedAt() time.Time { return s.joinedAt }

// RemoteAddr returns the peer address as a string.
func (s *Session) RemoteAddr() string { return s.remote }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Logger returns the session-tagged logger.
func (s *Session) Logger() *util.Logger { return s.logger }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.logger.Debug("state → %s", st)
}

// Handshake prompts for a name and reads exactly one line as the
// display name, verbatim.  On success the session is StateActive; on
// error the caller must Close it without ever announcing it.
func (s *Session) Handshake() error {
	s.setState(StateHandshaking)
	if err := s.Send(protocol.NamePrompt); err != nil {
		return fmt.Errorf("handshake prompt: %w", err)
	}
	name, err := s.ReadLine()
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	s.name = name
	s.joinedAt = time.Now()
	s.setState(StateActive)
	return nil
}

// ReadLine reads the next line from the peer.  io.EOF signals that the
// peer closed its side.
func (s *Session) ReadLine() (string, error) {
	line, err := s.lines.ReadLine()
	if err != nil {
		return "", err
	}
	s.metrics.BytesReceived(int64(len(line) + 1))
	return line, nil
}

// Send writes line plus a terminator.  Writes are serialised per
// session so concurrent senders never interleave within a line.
//
// A failed write may have left part of the line on the wire, so it
// closes the session before the lock is released: nothing is ever
// appended to a torn line.  The session's own read loop then ends and
// the usual departure follows.
func (s *Session) Send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return ncerr.ErrSessionClosed
	}
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)) //nolint:errcheck
	}
	n, err := s.conn.Write(protocol.FormatLine(line))
	s.metrics.BytesSent(int64(n))
	if err != nil {
		s.logger.Verbose("write failed after %d bytes, closing: %v", n, err)
		s.Close() //nolint:errcheck
		return ncerr.Wrap("write", s.remote, err)
	}
	return nil
}

// Deliver is Send guarded by the session's circuit breaker: once the
// peer has failed several deliveries in a row, further ones are dropped
// without touching the session.
func (s *Session) Deliver(line string) error {
	return s.breaker.Execute(func() error { return s.Send(line) })
}

// Close closes the connection.  It is idempotent and safe to call
// concurrently; afterwards every Send fails with ErrSessionClosed and a
// blocked ReadLine returns.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		s.setState(StateClosing)
		err = s.conn.Close()
		s.setState(StateClosed)
	})
	return err
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

func (s *Session) String() string {
	return fmt.Sprintf("%s(%q@%s)", s.ID.String()[:8], s.name, s.remote)
}
