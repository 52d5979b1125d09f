package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gochat/config"
	ncerr "gochat/internal/errors"
)

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	for _, args := range [][]string{
		{"server", "--dry-run"},
		{"server", "9000", "--dry-run"},
		{"client", "--dry-run"},
		{"client", "Alice", "chat.example.com", "4000", "--dry-run"},
		{"client", "Bob", "10.0.0.5", "-T", "ops@bastion:2222", "--dry-run"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_Invalid verifies bad command lines are rejected.
func TestExecute_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantSub string
	}{
		{"unknown flag", []string{"--nonexistent-flag"}, "unknown flag"},
		{"no mode", []string{"-p", "9000", "--dry-run"}, "mode"},
		{"unknown mode", []string{"relay", "--dry-run"}, "unknown mode"},
		{"bad port", []string{"server", "99999", "--dry-run"}, "out of range"},
		{"non-numeric port", []string{"client", "A", "localhost", "http", "--dry-run"}, "invalid port"},
		{"too many server args", []string{"server", "1", "2", "--dry-run"}, "too many"},
		{"too many client args", []string{"client", "a", "b", "3", "4", "--dry-run"}, "too many"},
		{"server tunnel", []string{"server", "-T", "gw", "--dry-run"}, "client only"},
		{"bad tunnel", []string{"client", "-T", ":", "--dry-run"}, "tunnel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Execute(context.Background(), tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err, tt.wantSub)
			}
		})
	}
}

// TestParse_ClientDefaults verifies the documented defaults.
func TestParse_ClientDefaults(t *testing.T) {
	cfg, act, _, err := parse([]string{"client"})
	if err != nil {
		t.Fatal(err)
	}
	if act != actRun {
		t.Fatalf("action = %v", act)
	}
	if cfg.Name != "Guest" || cfg.Host != "localhost" || cfg.Port != 12345 {
		t.Errorf("got name=%q host=%q port=%d", cfg.Name, cfg.Host, cfg.Port)
	}
}

// TestParse_Positional verifies `client name host port`.
func TestParse_Positional(t *testing.T) {
	cfg, _, _, err := parse([]string{"client", "Alice", "chat.example.com", "4000"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != config.ModeClient || cfg.Name != "Alice" || cfg.Host != "chat.example.com" || cfg.Port != 4000 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

// TestParse_Precedence verifies flags > env > defaults.
func TestParse_Precedence(t *testing.T) {
	t.Setenv("GOCHAT_PORT", "4000")
	t.Setenv("GOCHAT_NAME", "EnvName")
	t.Setenv("GOCHAT_TIMEOUT", "7s")

	cfg, _, _, err := parse([]string{"client"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 4000 || cfg.Name != "EnvName" || cfg.Timeout != 7*time.Second {
		t.Errorf("env not applied: port=%d name=%q timeout=%v", cfg.Port, cfg.Name, cfg.Timeout)
	}

	cfg, _, _, err = parse([]string{"client", "Flag", "-p", "5000", "-w", "2"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 5000 || cfg.Name != "Flag" || cfg.Timeout != 2*time.Second {
		t.Errorf("flags should win: port=%d name=%q timeout=%v", cfg.Port, cfg.Name, cfg.Timeout)
	}
}

// TestParse_VerboseEnvFloor verifies GOCHAT_VERBOSE survives the
// counting flag.
func TestParse_VerboseEnvFloor(t *testing.T) {
	t.Setenv("GOCHAT_VERBOSE", "2")
	cfg, _, _, err := parse([]string{"server"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Verbose != 2 {
		t.Errorf("Verbose = %d, want 2", cfg.Verbose)
	}

	cfg, _, _, err = parse([]string{"server", "-vvv"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Verbose != 3 {
		t.Errorf("Verbose = %d, want 3", cfg.Verbose)
	}
}

// TestParse_Tunnel verifies -T is expanded into the tunnel fields.
func TestParse_Tunnel(t *testing.T) {
	cfg, _, _, err := parse([]string{"client", "Bob", "10.0.0.5", "-T", "ops@bastion:2222", "--ssh-agent"})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.TunnelEnabled || cfg.TunnelUser != "ops" || cfg.TunnelHost != "bastion" || cfg.TunnelPort != 2222 {
		t.Errorf("tunnel not applied: %+v", cfg)
	}
	if !cfg.UseSSHAgent {
		t.Error("--ssh-agent not applied")
	}
}

// TestParse_ConfigError verifies validation failures keep their type.
func TestParse_ConfigError(t *testing.T) {
	_, _, _, err := parse([]string{"server", "-p", "0"})
	var ce *ncerr.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
	if ce.Field != "port" {
		t.Errorf("Field = %q, want port", ce.Field)
	}
}
