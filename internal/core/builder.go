package core

import (
	"fmt"
	"time"

	"gochat/config"
	"gochat/internal/metrics"
	"gochat/internal/registry"
	"gochat/internal/retry"
	"gochat/internal/transport"
	"gochat/tunnel"
	"gochat/util"
)

// Build constructs the Mode selected by cfg.Mode.  cfg is expected to
// have passed Validate.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	switch cfg.Mode {
	case config.ModeServer:
		return buildServer(cfg, logger), nil
	case config.ModeClient:
		return buildClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildServer(cfg *config.Config, logger *util.Logger) *ServerMode {
	m := metrics.New()
	return &ServerMode{
		Address:      util.ListenAddr(cfg.Port),
		WriteTimeout: cfg.WriteTimeout,
		GracePeriod:  config.DefaultGracePeriod,
		StatsAddr:    cfg.StatsAddr,
		Registry: registry.New(
			registry.WithMetrics(m),
			registry.WithLogger(logger.Named("registry")),
		),
		Metrics: m,
		Logger:  logger,
	}
}

func buildClient(cfg *config.Config, logger *util.Logger) *ClientMode {
	return &ClientMode{
		Dialer:       buildDialer(cfg, logger),
		Address:      util.FormatAddr(cfg.Host, cfg.Port),
		Name:         cfg.Name,
		Backoff:      buildBackoff(cfg, logger),
		DrainTimeout: config.DefaultDrainTimeout,
		Color:        !cfg.NoColor,
		Logger:       logger,
	}
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
			KeepAlive:     config.DefaultSSHKeepAlive,
		}, logger)
	}
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}

// buildBackoff returns nil (a single attempt) unless retries are enabled.
func buildBackoff(cfg *config.Config, logger *util.Logger) *retry.Backoff {
	if cfg.DialAttempts <= 1 {
		return nil
	}
	b := retry.DefaultBackoff()
	b.MaxAttempts = cfg.DialAttempts
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("connect attempt %d failed: %v; retrying in %v", attempt, err, wait.Truncate(time.Millisecond))
	}
	return b
}
