package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file, optionally seeded from .env)
//   3. Defaults   (defaults.go)

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LoadFromEnv overlays GOCHAT_* environment variables onto cfg.  Only
// variables that are set override the existing value.  Variables from
// the given dotenv files (".env" when none are named) are loaded first
// without overriding the real environment; a missing file is ignored.
// This should be called BEFORE CLI flag parsing so that flags take
// precedence.
func LoadFromEnv(cfg *Config, dotenv ...string) error {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load dotenv: %w", err)
	}
	// Tags carry the full variable name; with a prefix envconfig would
	// also fall back to bare names like HOST or NAME.
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}
