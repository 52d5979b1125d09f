package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"gochat/config"
	ncerr "gochat/internal/errors"
	"gochat/internal/metrics"
	"gochat/internal/protocol"
	"gochat/internal/registry"
	"gochat/internal/session"
	"gochat/internal/statsrv"
	"gochat/util"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// ServerMode accepts chat connections and relays every participant's
// lines to all the others.  Each connection runs in its own goroutine.
type ServerMode struct {
	Address      string // ":port"
	WriteTimeout time.Duration
	GracePeriod  time.Duration
	StatsAddr    string // optional HTTP stats endpoint

	Registry *registry.Registry
	Metrics  *metrics.Collector
	Logger   *util.Logger

	// Stdout receives the startup banner; defaults to os.Stdout.
	Stdout io.Writer

	wg   sync.WaitGroup
	once sync.Once
}

func (m *ServerMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

func (m *ServerMode) init() {
	m.once.Do(func() {
		if m.Logger == nil {
			m.Logger = util.NewLogger(0)
		}
		if m.Registry == nil {
			m.Registry = registry.New(registry.WithMetrics(m.Metrics), registry.WithLogger(m.Logger))
		}
		if m.GracePeriod == 0 {
			m.GracePeriod = config.DefaultGracePeriod
		}
	})
}

// Run binds the listen address and serves until ctx is cancelled.  A
// bind failure is returned as a *NetworkError with Op "listen".
func (m *ServerMode) Run(ctx context.Context) error {
	m.init()

	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		return ncerr.Wrap("listen", m.Address, err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(m.stdout(), "Server running on port %d\n", port)
	m.Logger.Verbose("listening on %s", ln.Addr())

	if m.StatsAddr != "" {
		stats := statsrv.New(m.Registry, m.Metrics, m.Logger.Named("stats"))
		go func() {
			if err := stats.Run(ctx, m.StatsAddr); err != nil {
				m.Logger.Error("stats endpoint: %v", err)
			}
		}()
	}

	err = m.Serve(ctx, ln)

	if m.Logger.Level() >= util.LogVerbose {
		m.Metrics.WriteTable(m.Logger.Output())
	}
	return err
}

// Serve runs the accept loop on ln.  It returns nil once ctx is
// cancelled (after closing every session and waiting up to the grace
// period), or ErrListenerClosed if ln is closed underneath it.
// Transient accept failures are logged and retried.
func (m *ServerMode) Serve(ctx context.Context, ln net.Listener) error {
	m.init()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				m.shutdown()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept on %s: %w", ln.Addr(), ncerr.ErrListenerClosed)
			}

			delay = nextAcceptDelay(delay)
			m.Metrics.RecordError(err.Error())
			m.Logger.Warn("accept: %v; retrying in %v", err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.serveConn(ctx, conn)
		}()
	}
}

func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}

// shutdown closes every session and waits for their goroutines.
func (m *ServerMode) shutdown() {
	m.Logger.Verbose("shutting down, closing %d sessions", m.Registry.Len())
	m.Registry.CloseAll()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(m.GracePeriod):
		m.Logger.Warn("sessions still running after %v", m.GracePeriod)
	}
}

// serveConn drives one connection through handshake, chat loop and
// departure.
func (m *ServerMode) serveConn(ctx context.Context, conn net.Conn) {
	m.Metrics.ConnectionOpened()
	defer m.Metrics.ConnectionClosed()

	s := session.New(conn, session.Options{
		WriteTimeout: m.WriteTimeout,
		Metrics:      m.Metrics,
		Logger:       m.Logger,
	})
	log := s.Logger()
	log.Verbose("connection from %s", s.RemoteAddr())

	// Not a registry member yet, so CloseAll would miss it.
	stopHS := context.AfterFunc(ctx, func() { s.Close() })
	err := s.Handshake()
	stopHS()
	if err != nil {
		s.Close()
		logReadEnd(log, "handshake", err)
		return
	}

	m.Registry.Add(s)
	if ctx.Err() != nil {
		s.Close()
	}
	log.Verbose("joined as %q", s.Name())
	m.Registry.Broadcast(ctx, s, protocol.Joined(s.Name()))

	for {
		line, err := s.ReadLine()
		if err != nil {
			logReadEnd(log, "read", err)
			break
		}
		if protocol.IsQuit(line) {
			log.Verbose("quit")
			break
		}
		m.Registry.Broadcast(ctx, s, protocol.Chat(s.Name(), line))
	}

	s.Close()
	m.Registry.Remove(s)
	m.Registry.Broadcast(ctx, s, protocol.Left(s.Name()))
	log.Verbose("left")
}

func logReadEnd(log *util.Logger, op string, err error) {
	if util.IsHarmless(err) {
		log.Debug("%s: %v", op, err)
		return
	}
	log.Verbose("%s: %v", op, err)
}
