package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/gookit/color"

	"gochat/config"
	ncerr "gochat/internal/errors"
	"gochat/internal/protocol"
	"gochat/internal/retry"
	"gochat/internal/transport"
	"gochat/util"
)

// ClientMode connects to a chat server, announces a name and then runs
// two flows: one prints everything the server sends, the other forwards
// lines typed on stdin.
type ClientMode struct {
	Dialer  transport.Dialer
	Address string
	Name    string

	// Backoff retries dial failures; nil means a single attempt.
	Backoff *retry.Backoff
	// DrainTimeout is how long server output is still printed after the
	// local side stopped sending.
	DrainTimeout time.Duration
	// Color highlights join, leave and disconnect notices.
	Color bool

	Logger *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ClientMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ClientMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials the server and chats until stdin ends, /quit is sent, the
// server goes away or ctx is cancelled.  The transport is closed when
// Run returns.
func (m *ClientMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	m.Logger.Verbose("connecting to %s", m.Address)
	conn, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", m.Address, err)
	}
	defer conn.Close()
	m.Logger.Verbose("connected to %s", conn.RemoteAddr())

	out := util.NewLockedWriter(m.stdout())

	if _, err := conn.Write(protocol.FormatLine(m.Name)); err != nil {
		return ncerr.Wrap("write", m.Address, err)
	}
	fmt.Fprintln(out, protocol.Connected(m.Name))

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		m.receive(conn, out)
	}()

	m.send(ctx, conn, recvDone)

	drain := m.DrainTimeout
	if drain == 0 {
		drain = config.DefaultDrainTimeout
	}
	select {
	case <-recvDone:
		return nil
	case <-time.After(drain):
		m.Logger.Debug("receiver still running after %v, closing", drain)
	case <-ctx.Done():
	}

	conn.Close()
	<-recvDone
	return nil
}

func (m *ClientMode) dial(ctx context.Context) (net.Conn, error) {
	if m.Backoff == nil {
		return m.Dialer.Dial(ctx, "tcp", m.Address)
	}

	var conn net.Conn
	err := m.Backoff.Do(ctx, func(attempt int) error {
		c, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err != nil {
			m.Logger.Debug("dial attempt %d: %v", attempt, err)
			if !ncerr.IsRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	})
	return conn, err
}

// receive prints server lines until the connection ends, then the
// disconnect notice.
func (m *ClientMode) receive(conn net.Conn, out io.Writer) {
	lr := protocol.NewLineReader(conn)
	for {
		line, err := lr.ReadLine()
		if err != nil {
			if !util.IsHarmless(err) {
				m.Logger.Verbose("receive: %v", err)
			}
			break
		}
		fmt.Fprintln(out, m.decorate(line))
	}
	fmt.Fprintln(out, m.paint(color.New(color.FgRed), protocol.Disconnected))
}

// send forwards stdin lines to conn.  It returns after a /quit line has
// been sent, on stdin EOF (half-closing conn), on a write error, when
// the receiver has finished or when ctx is cancelled.
func (m *ClientMode) send(ctx context.Context, conn net.Conn, recvDone <-chan struct{}) {
	stop := make(chan struct{})
	defer close(stop)

	lines := make(chan string)
	go func() {
		defer close(lines)
		lr := protocol.NewLineReader(m.stdin())
		for {
			line, err := lr.ReadLine()
			if err != nil {
				return
			}
			select {
			case lines <- line:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if util.HalfClose(conn) {
					m.Logger.Debug("stdin closed, half-closed connection")
				}
				return
			}
			if _, err := conn.Write(protocol.FormatLine(line)); err != nil {
				m.Logger.Verbose("send: %v", err)
				return
			}
			if protocol.IsQuit(line) {
				return
			}
		case <-recvDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *ClientMode) decorate(line string) string {
	switch protocol.Classify(line) {
	case protocol.KindJoin:
		return m.paint(color.New(color.FgGreen), line)
	case protocol.KindLeave:
		return m.paint(color.New(color.FgYellow), line)
	case protocol.KindPrompt:
		return m.paint(color.New(color.FgCyan), line)
	default:
		return line
	}
}

func (m *ClientMode) paint(style color.Style, s string) string {
	if !m.Color {
		return s
	}
	return style.Render(s)
}
