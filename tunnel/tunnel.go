// Package tunnel lets a chat client reach a server that is only
// visible from an SSH gateway.  The chat protocol itself is unchanged;
// the gateway simply carries the TCP stream.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is an established channel through which TCP connections can
// be opened on the far side.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address from the gateway.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel and every connection opened through it.
	Close() error

	// IsAlive reports whether the gateway connection is still up.
	IsAlive() bool
}
