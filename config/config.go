// Package config defines the runtime configuration for gochat and
// provides helpers for parsing ports and tunnel specifications.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	ncerr "gochat/internal/errors"
)

// Run modes.
const (
	ModeServer = "server"
	ModeClient = "client"
)

// Config holds every tuneable for a single gochat process.  The
// envconfig tags name the GOCHAT_* variables read by LoadFromEnv.
type Config struct {
	Mode string `ignored:"true" validate:"required,oneof=server client"`

	// ── Connection ───────────────────────────────────────────────────
	Host         string        `envconfig:"GOCHAT_HOST" validate:"required_if=Mode client"`
	Port         int           `envconfig:"GOCHAT_PORT" validate:"min=1,max=65535"`
	Name         string        `envconfig:"GOCHAT_NAME"`
	Timeout      time.Duration `envconfig:"GOCHAT_TIMEOUT"` // dial timeout
	DialAttempts int           `envconfig:"GOCHAT_RETRIES" validate:"min=0"`

	// ── Server ───────────────────────────────────────────────────────
	WriteTimeout time.Duration `envconfig:"GOCHAT_WRITE_TIMEOUT"` // 0 = none
	StatsAddr    string        `envconfig:"GOCHAT_STATS_ADDR"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string `envconfig:"GOCHAT_TUNNEL"` // raw user@host[:port] from -T
	TunnelEnabled  bool   `ignored:"true"`
	TunnelUser     string `ignored:"true"`
	TunnelHost     string `ignored:"true"`
	TunnelPort     int    `ignored:"true"`
	SSHKeyPath     string `envconfig:"GOCHAT_SSH_KEY"`
	SSHPassword    bool   `ignored:"true"` // true → prompt interactively
	UseSSHAgent    bool   `envconfig:"GOCHAT_SSH_AGENT"`
	StrictHostKey  bool   `envconfig:"GOCHAT_STRICT_HOSTKEY"`
	KnownHostsPath string `envconfig:"GOCHAT_KNOWN_HOSTS"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose int  `envconfig:"GOCHAT_VERBOSE" validate:"min=0"`
	NoColor bool `envconfig:"GOCHAT_NO_COLOR"`
	DryRun  bool `ignored:"true"`
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		Name:         DefaultName,
		Timeout:      DefaultConnTimeout,
		DialAttempts: DefaultDialAttempts,
	}
}

// ── Port / tunnel-spec parsers ───────────────────────────────────────

// ParsePort accepts a decimal port number in 1-65535.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec (if set) into the Tunnel* fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "use -T user@gateway[:port]",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

var validate = validator.New()

// flagNames maps struct fields to the CLI flag reported in errors.
var flagNames = map[string]string{
	"Mode":         "mode",
	"Host":         "host",
	"Port":         "port",
	"DialAttempts": "retries",
	"Verbose":      "verbose",
}

// Validate checks that the configuration is internally consistent.
// Failures are returned as *errors.ConfigError with a hint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return translate(verrs[0])
		}
		return err
	}

	if c.Mode == ModeServer && c.TunnelEnabled {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "the server cannot listen through an SSH tunnel",
			Hint:    "use -T with the client only",
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if c.Timeout < 0 || c.WriteTimeout < 0 {
		return &ncerr.ConfigError{
			Field:   "timeout",
			Message: "timeouts cannot be negative",
		}
	}
	return nil
}

func translate(fe validator.FieldError) error {
	field := flagNames[fe.Field()]
	if field == "" {
		field = fe.Field()
	}
	ce := &ncerr.ConfigError{Field: field, Value: fe.Value()}

	switch fe.Field() + "." + fe.Tag() {
	case "Mode.required":
		ce.Value = nil
		ce.Message = "a mode is required"
		ce.Hint = "run `gochat server [port]` or `gochat client [name] [host] [port]`"
	case "Mode.oneof":
		ce.Message = "unknown mode"
		ce.Hint = "the mode must be server or client"
	case "Host.required_if":
		ce.Value = nil
		ce.Message = "client mode requires a server host"
		ce.Hint = "pass it as the second argument, e.g. `gochat client Alice chat.example.com`"
	case "Port.min", "Port.max":
		ce.Message = "port out of range"
		ce.Hint = "use a port between 1 and 65535"
	default:
		ce.Message = fmt.Sprintf("failed %q check", fe.Tag())
	}
	return ce
}
