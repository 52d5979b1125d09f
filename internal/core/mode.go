// Package core is the orchestration layer.  It composes sessions, the
// registry and transports into the two runnable modes of gochat and
// provides a builder that selects one from a Config.
//
// Architecture layers (bottom → top):
//
//	protocol → session → registry → core → cmd (CLI)
//	transport/tunnel ─────────────↗
package core

import "context"

// Mode is a complete operational mode of gochat (server or client).
// Each mode owns its full lifecycle from connection establishment to
// teardown.
type Mode interface {
	Run(ctx context.Context) error
}
