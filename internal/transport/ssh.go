package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	ncerr "gochat/internal/errors"
	"gochat/tunnel"
	"gochat/util"
)

// SSHDialer reaches the chat server through an SSH gateway.  The
// gateway connection is made on the first Dial and re-made on a later
// Dial if it has dropped in between.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	config *tunnel.SSHConfig
	logger *util.Logger

	mu        sync.Mutex
	connected bool
}

// NewSSHDialer returns a dialer for the gateway described by cfg.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, logger),
		config: cfg,
		logger: logger,
	}
}

func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected && d.tunnel.IsAlive() {
		return nil
	}
	if d.connected {
		d.logger.Verbose("SSH gateway dropped, reconnecting")
		d.tunnel.Close() //nolint:errcheck
		d.connected = false
	}

	d.logger.Verbose("opening SSH gateway %s@%s:%d",
		d.config.User, d.config.Host, d.config.Port)
	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	d.connected = true
	return nil
}

// Dial connects to address from the gateway's side.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	conn, err := d.tunnel.Dial(ctx, network, address)
	if ncerr.Is(err, ncerr.ErrTunnelClosed) {
		// Dropped between connect and Dial; let the caller's retry
		// reconnect.
		return nil, &ncerr.NetworkError{Op: "dial", Addr: address, Err: err, Retryable: true}
	}
	return conn, err
}

// Close tears down the gateway connection.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	d.connected = false
	return d.tunnel.Close()
}
