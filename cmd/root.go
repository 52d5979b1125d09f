// Package cmd wires up the CLI flags and dispatches to the chat core.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"gochat/config"
	"gochat/internal/core"
	"gochat/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X gochat/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

type action int

const (
	actRun action = iota
	actHelp
	actVersion
)

// Execute parses args and runs the selected gochat mode.
func Execute(ctx context.Context, args []string) error {
	cfg, act, fs, err := parse(args)
	if err != nil {
		return err
	}

	switch act {
	case actHelp:
		printUsage(fs)
		return nil
	case actVersion:
		fmt.Printf("gochat %s\n", version)
		return nil
	}

	if cfg.Mode == config.ModeClient && !cfg.NoColor && !term.IsTerminal(int(os.Stdout.Fd())) {
		cfg.NoColor = true
	}

	logger := util.NewLogger(cfg.Verbose)

	if cfg.DryRun {
		fmt.Fprintf(os.Stderr, "gochat: %s configuration OK (%s)\n", cfg.Mode, describe(cfg))
		return nil
	}

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// parse builds the configuration from defaults, the environment and
// args, in increasing order of precedence, and validates it.
func parse(args []string) (*config.Config, action, *flag.FlagSet, error) {
	cfg := config.Default()
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, actRun, nil, err
	}

	fs := flag.NewFlagSet("gochat", flag.ContinueOnError)

	// CountVarP resets its target; keep GOCHAT_VERBOSE as the floor.
	envVerbose := cfg.Verbose

	// Flag defaults are the values after the env overlay, so an unset
	// flag keeps whatever the environment chose.

	// ── connection ───────────────────────────────────────────────
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Server port")
	var timeoutSec, writeTimeoutSec int
	fs.IntVarP(&timeoutSec, "timeout", "w", int(cfg.Timeout/time.Second), "Connect timeout in seconds")
	fs.IntVar(&cfg.DialAttempts, "retries", cfg.DialAttempts, "Connection attempts before giving up (client)")

	// ── server ───────────────────────────────────────────────────
	fs.IntVar(&writeTimeoutSec, "write-timeout", int(cfg.WriteTimeout/time.Second),
		"Seconds a slow participant may block one delivery, 0 = no limit (server)")
	fs.StringVar(&cfg.StatsAddr, "stats-addr", cfg.StatsAddr, "Serve HTTP stats on this address (server)")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach the server through SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable coloured notices (client)")
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return nil, actRun, fs, err
	}

	if showHelp || len(args) == 0 {
		return cfg, actHelp, fs, nil
	}
	if showVersion {
		return cfg, actVersion, fs, nil
	}

	if cfg.Verbose < envVerbose {
		cfg.Verbose = envVerbose
	}
	if fs.Changed("timeout") {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}
	if fs.Changed("write-timeout") {
		cfg.WriteTimeout = time.Duration(writeTimeoutSec) * time.Second
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return nil, actRun, fs, err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return nil, actRun, fs, err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return nil, actRun, fs, err
	}
	return cfg, actRun, fs, nil
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional handles `server [port]` and
// `client [name] [host] [port]`.
func parsePositional(cfg *config.Config, remaining []string) error {
	if len(remaining) == 0 {
		return nil // Validate reports the missing mode
	}
	cfg.Mode = strings.ToLower(remaining[0])
	rest := remaining[1:]

	var portArg string
	switch cfg.Mode {
	case config.ModeServer:
		switch len(rest) {
		case 0:
		case 1:
			portArg = rest[0]
		default:
			return fmt.Errorf("too many arguments for server mode")
		}
	case config.ModeClient:
		if len(rest) > 3 {
			return fmt.Errorf("too many arguments for client mode")
		}
		if len(rest) > 0 {
			cfg.Name = rest[0]
		}
		if len(rest) > 1 {
			cfg.Host = rest[1]
		}
		if len(rest) > 2 {
			portArg = rest[2]
		}
	}

	if portArg != "" {
		port, err := config.ParsePort(portArg)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
	}
	return nil
}

func describe(cfg *config.Config) string {
	switch cfg.Mode {
	case config.ModeServer:
		s := fmt.Sprintf("listen %s", util.ListenAddr(cfg.Port))
		if cfg.StatsAddr != "" {
			s += ", stats " + cfg.StatsAddr
		}
		return s
	default:
		s := fmt.Sprintf("%q → %s", cfg.Name, util.FormatAddr(cfg.Host, cfg.Port))
		if cfg.TunnelEnabled {
			s += fmt.Sprintf(" via %s@%s:%d", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
		}
		return s
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `gochat – multi-user TCP chat v%s

Usage:
  gochat server [port] [options]                 Start the chat server
  gochat client [name] [host] [port] [options]   Join a chat

Defaults: port %d, host %s, name %s.  Type /quit to leave.

Options:
`, version, config.DefaultPort, config.DefaultHost, config.DefaultName)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  GOCHAT_HOST, GOCHAT_PORT, GOCHAT_NAME, GOCHAT_TIMEOUT, GOCHAT_RETRIES,
  GOCHAT_WRITE_TIMEOUT, GOCHAT_STATS_ADDR, GOCHAT_TUNNEL, GOCHAT_SSH_KEY,
  GOCHAT_SSH_AGENT, GOCHAT_STRICT_HOSTKEY, GOCHAT_KNOWN_HOSTS,
  GOCHAT_NO_COLOR, GOCHAT_VERBOSE  (also read from ./.env)

Examples:
  gochat server                                  Listen on %d
  gochat server 9000 --stats-addr 127.0.0.1:9100 Listen on 9000 with stats
  gochat client Alice                            Join localhost:%d as Alice
  gochat client Bob chat.example.com 9000        Join a remote server
  gochat client Bob 10.0.0.5 -T ops@bastion      Join through an SSH gateway
`, config.DefaultPort, config.DefaultPort)
}
