package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	ncerr "gochat/internal/errors"
	"gochat/tunnel"
	"gochat/util"
)

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("Enter your name:\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "Enter your name:\n" {
		t.Errorf("got %q", got)
	}
}

// TestTCPDialer_Refused verifies a refused dial is a retryable
// *NetworkError.
func TestTCPDialer_Refused(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	addr := util.FormatAddr("127.0.0.1", port)

	d := &TCPDialer{Timeout: time.Second}
	_, err = d.Dial(context.Background(), "tcp", addr)
	if err == nil {
		t.Fatal("expected dial to a closed port to fail")
	}

	var ne *ncerr.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("error %T is not a *NetworkError", err)
	}
	if ne.Op != "dial" || ne.Addr != addr {
		t.Errorf("got op=%q addr=%q", ne.Op, ne.Addr)
	}
	if !ncerr.IsRetryable(err) {
		t.Errorf("connection refused should be retryable: %v", err)
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Dial(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// TestTCPDialer_Close verifies Close is a no-op and returns nil.
func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestSSHDialer_GatewayUnreachable verifies the dial error surfaces and
// Close stays safe.
func TestSSHDialer_GatewayUnreachable(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("HOME", t.TempDir())
	d := NewSSHDialer(&tunnel.SSHConfig{
		User:        "chat",
		Host:        "127.0.0.1",
		Port:        port,
		PromptPass:  false,
		ConnTimeout: time.Second,
	}, util.NewLogger(0))

	_, err = d.Dial(context.Background(), "tcp", "10.0.0.5:12345")
	if err == nil {
		t.Fatal("expected error")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close after failed dial: %v", err)
	}
}

// TestDialer_Interface ensures both dialers satisfy Dialer.
func TestDialer_Interface(t *testing.T) {
	var _ Dialer = &TCPDialer{}
	var _ Dialer = &SSHDialer{}
}
