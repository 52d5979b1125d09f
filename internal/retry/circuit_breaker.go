package retry

import (
	"fmt"
	"sync"
	"time"

	ncerr "gochat/internal/errors"
)

// State represents the circuit breaker's operational state.
type State int

const (
	// StateClosed is normal operation; deliveries pass through.
	StateClosed State = iota
	// StateOpen means the peer keeps failing and deliveries are dropped.
	StateOpen
	// StateHalfOpen lets probe deliveries through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit (default 3).
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before a probe
	// is let through (default 10s).
	ResetTimeout time.Duration
	// HalfOpenMax is the number of consecutive probe successes needed
	// to close the circuit again (default 1).
	HalfOpenMax int
	// OnStateChange runs under the breaker's lock on every transition.
	OnStateChange func(from, to State)
}

// DefaultCircuitBreakerConfig returns the per-session delivery defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:  3,
		ResetTimeout: 10 * time.Second,
		HalfOpenMax:  1,
	}
}

// CircuitBreaker counts consecutive failures of an operation and, past
// a threshold, rejects calls without running them.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	openedAt      time.Time
	onStateChange func(from, to State)
}

// NewCircuitBreaker creates a circuit breaker; nil cfg uses defaults.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg == nil {
		cfg = def
	}
	cb := &CircuitBreaker{
		state:         StateClosed,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = def.MaxFailures
	}
	if cb.resetTimeout <= 0 {
		cb.resetTimeout = def.ResetTimeout
	}
	if cb.halfOpenMax <= 0 {
		cb.halfOpenMax = def.HalfOpenMax
	}
	return cb
}

// Execute runs fn unless the circuit is open, in which case it returns
// an error wrapping [ncerr.ErrCircuitOpen] without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the circuit breaker back to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.successes = 0
	cb.transition(StateClosed)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	since := time.Since(cb.openedAt)
	if since >= cb.resetTimeout {
		cb.successes = 0
		cb.transition(StateHalfOpen)
		return nil
	}
	return fmt.Errorf("%w after %d consecutive failures, next probe in %v",
		ncerr.ErrCircuitOpen, cb.failures, (cb.resetTimeout - since).Truncate(time.Millisecond))
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.successes = 0
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.openedAt = time.Now()
			cb.transition(StateOpen)
		}
		return
	}

	cb.successes++
	switch cb.state {
	case StateHalfOpen:
		if cb.successes >= cb.halfOpenMax {
			cb.failures = 0
			cb.transition(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
