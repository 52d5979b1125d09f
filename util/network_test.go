package util

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestFormatAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"1.2.3.4", 22, "1.2.3.4:22"},
		{"::1", 12345, "[::1]:12345"},
		{"localhost", 12345, "localhost:12345"},
	}
	for _, tt := range tests {
		if got := FormatAddr(tt.host, tt.port); got != tt.want {
			t.Errorf("FormatAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestListenAddr(t *testing.T) {
	if got := ListenAddr(12345); got != ":12345" {
		t.Errorf("got %q, want %q", got, ":12345")
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if port < 1 || port > 65535 {
		t.Errorf("port %d out of range", port)
	}
}

func TestHalfClose_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn) // returns once the client half-closes
		conn.Write([]byte("bye\n")) //nolint:errcheck
		got <- data
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.Write([]byte("hi")) //nolint:errcheck
	if !HalfClose(conn) {
		t.Fatal("HalfClose on a TCP conn should succeed")
	}

	select {
	case data := <-got:
		if string(data) != "hi" {
			t.Errorf("server read %q, want %q", data, "hi")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw EOF")
	}

	reply, _ := io.ReadAll(conn)
	if string(reply) != "bye\n" {
		t.Errorf("reply = %q, want %q", reply, "bye\n")
	}
}

func TestHalfClose_Pipe(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	if HalfClose(a) {
		t.Error("net.Pipe has no CloseWrite; HalfClose should report false")
	}
}
