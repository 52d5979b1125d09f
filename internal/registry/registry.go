// Package registry holds the set of chat sessions that have completed
// the name handshake and fans broadcast lines out to them.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	ncerr "gochat/internal/errors"
	"gochat/internal/metrics"
	"gochat/internal/session"
	"gochat/util"
)

// DefaultMaxFanout bounds the number of concurrent deliveries a single
// broadcast runs.
const DefaultMaxFanout = 64

// Registry is the concurrent-safe membership set.  Membership changes
// and broadcast snapshots are atomic with respect to one another.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session.Session

	maxFanout int
	metrics   *metrics.Collector
	logger    *util.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxFanout overrides DefaultMaxFanout.  n <= 0 removes the limit.
func WithMaxFanout(n int) Option {
	return func(r *Registry) { r.maxFanout = n }
}

// WithMetrics records membership and broadcast counters on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *util.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New returns an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions:  make(map[uuid.UUID]*session.Session),
		maxFanout: DefaultMaxFanout,
		logger:    util.NewLogger(0),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Add inserts s and reports whether it was newly added.  Adding a
// session that is already a member is a no-op.
func (r *Registry) Add(s *session.Session) bool {
	r.mu.Lock()
	_, dup := r.sessions[s.ID]
	if !dup {
		r.sessions[s.ID] = s
	}
	r.mu.Unlock()

	if dup {
		return false
	}
	r.metrics.SessionJoined()
	return true
}

// Remove deletes s and reports whether it was a member.  Removing a
// non-member is a no-op.
func (r *Registry) Remove(s *session.Session) bool {
	r.mu.Lock()
	_, ok := r.sessions[s.ID]
	delete(r.sessions, s.ID)
	r.mu.Unlock()

	if ok {
		r.metrics.SessionLeft()
	}
	return ok
}

// Contains reports whether s is currently a member.
func (r *Registry) Contains(s *session.Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[s.ID]
	return ok
}

// Len returns the number of members.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of the members ordered by join time.
func (r *Registry) Sessions() []*session.Session {
	r.mu.RLock()
	out := lo.Values(r.sessions)
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].JoinedAt().Before(out[j].JoinedAt())
	})
	return out
}

// Broadcast delivers line to every member except exclude (which may be
// nil) and returns the number of successful deliveries.  A failed
// delivery is logged and skipped; it never stops the others.
//
// Broadcast returns only after every delivery has finished, so two
// broadcasts issued one after another by the same goroutine reach each
// recipient in that order.
func (r *Registry) Broadcast(ctx context.Context, exclude *session.Session, line string) int {
	r.mu.RLock()
	targets := lo.Filter(lo.Values(r.sessions), func(s *session.Session, _ int) bool {
		return exclude == nil || s.ID != exclude.ID
	})
	r.mu.RUnlock()

	if len(targets) == 0 {
		r.metrics.Broadcast(0, 0)
		return 0
	}

	var (
		mu        sync.Mutex
		delivered int
	)
	g, gctx := errgroup.WithContext(ctx)
	if r.maxFanout > 0 {
		g.SetLimit(r.maxFanout)
	}
	for _, s := range targets {
		s := s
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := s.Deliver(line); err != nil {
				if ncerr.IsClosed(err) {
					// Already gone; its own goroutine announces the departure.
					r.logger.Debug("deliver to %s: %v", s, err)
				} else {
					r.logger.Verbose("deliver to %s: %v", s, err)
				}
				return nil
			}
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	r.metrics.Broadcast(delivered, len(targets)-delivered)
	return delivered
}

// CloseAll closes every member's connection.  Members stay registered;
// their own connection goroutines remove them as they unwind.
func (r *Registry) CloseAll() {
	for _, s := range r.Sessions() {
		s.Close() //nolint:errcheck
	}
}
