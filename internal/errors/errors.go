// Package errors defines the failures gochat distinguishes: a chat
// connection that broke, an SSH gateway that refused the client, and a
// command line that does not describe a runnable server or client.
//
// The server uses them to tell a peer that simply left from one that
// needs logging; the client uses them to decide whether another dial
// attempt is worthwhile.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Chat lifecycle.
var (
	// ErrSessionClosed is returned when writing to a participant whose
	// connection has already been torn down.
	ErrSessionClosed = errors.New("session is closed")
	// ErrListenerClosed ends the accept loop when its listener goes away.
	ErrListenerClosed = errors.New("listener is closed")
	// ErrCircuitOpen means deliveries to a participant are being skipped
	// after repeated write failures.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// SSH gateway.
var (
	ErrNotConnected    = errors.New("not connected")
	ErrTunnelClosed    = errors.New("tunnel is closed")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrHostKeyMismatch = errors.New("host key mismatch")
)

// NetworkError is a failed socket operation on a chat connection or
// listener.  Retryable is set when a later attempt may succeed, which
// the client uses to decide whether to dial again.
type NetworkError struct {
	Op        string // "listen", "dial", "write", ...
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		return msg + " (retryable)"
	}
	return msg
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError is a failure talking to the SSH gateway a client dials
// through.
type SSHError struct {
	Op   string // "auth", "hostkey", "handshake"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError reports a flag or environment value that cannot be used.
// Field is the long flag name, so the message points at what to fix.
type ConfigError struct {
	Field   string
	Value   interface{} // nil when the value is missing
	Message string
	Hint    string
}

func (e *ConfigError) Error() string {
	msg := "config: --" + e.Field
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// Wrap tags err with the operation and address it came from and
// classifies it for retry.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{Op: op, Addr: addr, Err: err, Retryable: classifyRetryable(err)}
}

// WrapSSH tags err with the gateway it came from.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// IsRetryable reports whether dialing again could help.  A
// NetworkError's own classification wins; anything else is judged
// from the underlying error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsClosed reports whether err means the session or listener it came
// from has already been shut down.
func IsClosed(err error) bool {
	return errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrListenerClosed) ||
		errors.Is(err, net.ErrClosed)
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Temporary() { //nolint:staticcheck // no replacement for dial errors
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.Temporary() { //nolint:staticcheck
		return true
	}
	// A chat server that is still starting up refuses the first dials.
	return errors.Is(err, syscall.ECONNREFUSED)
}

// Is is [errors.Is], so callers holding this package under its usual
// alias need not import both.
func Is(err, target error) bool { return errors.Is(err, target) }
