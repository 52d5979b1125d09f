// Package transport decides how a chat client reaches its server:
// a direct TCP connection or one carried through an SSH gateway.
package transport

import (
	"context"
	"net"
)

// Dialer opens the client's connection to the chat server.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
