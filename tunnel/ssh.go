package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "gochat/internal/errors"
	"gochat/util"
)

// SSHConfig holds everything needed to log in to an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// KeepAlive is the interval between keepalive requests; 0 disables
	// them.
	KeepAlive time.Duration
}

func (c *SSHConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSHTunnel implements [Tunnel] with a single ssh.Client.
type SSHTunnel struct {
	config *SSHConfig
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
	alive  bool
	done   chan struct{}
}

// NewSSHTunnel returns a tunnel that is ready to [SSHTunnel.Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHTunnel{config: cfg, logger: logger.Named("ssh " + cfg.Host)}
}

// Connect dials the gateway and completes the SSH handshake.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	cfg := t.config

	auth, err := BuildAuthMethods(cfg)
	if err != nil {
		return ncerr.WrapSSH("auth", cfg.Host, cfg.Port, err)
	}
	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return ncerr.WrapSSH("hostkey", cfg.Host, cfg.Port, err)
	}

	addr := cfg.addr()
	t.logger.Debug("dialing %s as %q", addr, cfg.User)

	dialer := net.Dialer{Timeout: cfg.ConnTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ncerr.Wrap("dial", addr, err)
	}

	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         cfg.ConnTimeout,
	})
	if err != nil {
		raw.Close()
		return ncerr.WrapSSH("handshake", cfg.Host, cfg.Port, classifyHandshake(err))
	}

	client := ssh.NewClient(conn, chans, reqs)
	done := make(chan struct{})

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.done = done
	t.mu.Unlock()

	go t.watch(client, done)
	if cfg.KeepAlive > 0 {
		go t.keepAlive(client, done, cfg.KeepAlive)
	}
	t.logger.Verbose("connected to gateway %s", addr)
	return nil
}

// Dial opens address from the gateway's side.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client, alive := t.client, t.alive
	t.mu.RUnlock()

	if client == nil {
		return nil, ncerr.ErrNotConnected
	}
	if !alive {
		return nil, ncerr.ErrTunnelClosed
	}

	t.logger.Debug("forwarding %s %s", network, address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("tunnel dial", address, err)
	}
	return conn, nil
}

// Close shuts the gateway connection down.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// IsAlive reports whether the gateway connection is still up.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// watch blocks until the SSH connection ends and marks the tunnel dead.
func (t *SSHTunnel) watch(client *ssh.Client, done chan struct{}) {
	err := client.Wait()
	close(done)

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil && !util.IsHarmless(err) {
		t.logger.Verbose("gateway connection closed: %v", err)
		return
	}
	t.logger.Debug("gateway connection closed")
}

func (t *SSHTunnel) keepAlive(client *ssh.Client, done <-chan struct{}, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-done:
			return
		case <-tick.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				t.logger.Debug("keepalive: %v", err)
				client.Close()
				return
			}
		}
	}
}

// classifyHandshake maps credential failures onto ErrAuthFailed so
// callers can tell them apart from network trouble.
func classifyHandshake(err error) error {
	if ncerr.Is(err, ncerr.ErrHostKeyMismatch) {
		return err
	}
	if strings.Contains(err.Error(), "unable to authenticate") {
		return fmt.Errorf("%w: %v", ncerr.ErrAuthFailed, err)
	}
	return err
}
