package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultPort is the chat server's TCP port.
	DefaultPort = 12345

	// DefaultHost is the server a client connects to.
	DefaultHost = "localhost"

	// DefaultName is the client's display name when none is given.
	DefaultName = "Guest"

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultSSHKeepAlive is the interval between SSH gateway keepalives.
	DefaultSSHKeepAlive = 30 * time.Second

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultDialAttempts is how many times a client tries to reach the
	// server before giving up.
	DefaultDialAttempts = 3

	// DefaultGracePeriod is how long the server waits for sessions to
	// unwind on shutdown.
	DefaultGracePeriod = 5 * time.Second

	// DefaultDrainTimeout is how long a client keeps printing server
	// output after it stopped sending.
	DefaultDrainTimeout = 2 * time.Second
)
