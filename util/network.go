package util

import (
	"fmt"
	"net"
	"strconv"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ListenAddr returns the wildcard listen address for port, ":port".
func ListenAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// HalfClose shuts down the write side of conn when the connection
// supports it, so the peer sees EOF while replies can still be read.
// It reports whether a half-close was performed.
func HalfClose(conn net.Conn) bool {
	type closeWriter interface {
		CloseWrite() error
	}
	cw, ok := conn.(closeWriter)
	if !ok {
		return false
	}
	return cw.CloseWrite() == nil
}
