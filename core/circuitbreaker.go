package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// BreakerState represents the state of a circuit breaker
type BreakerState string

const (
	// BreakerClosed means calls pass through normally
	BreakerClosed BreakerState = "closed"
	// BreakerOpen means calls fail immediately until the cooldown elapses
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen means a limited number of probe calls are allowed
	BreakerHalfOpen BreakerState = "half_open"
)

var (
	// ErrBreakerOpen is returned when the breaker is open and the cooldown has not elapsed
	ErrBreakerOpen = errors.New("circuit breaker is open")
	// ErrBreakerSaturated is returned when the half-open probe budget is exhausted
	ErrBreakerSaturated = errors.New("circuit breaker half-open probe limit reached")
	// ErrInvalidBreakerConfig is returned for a zero-valued configuration
	ErrInvalidBreakerConfig = errors.New("invalid circuit breaker configuration")
)

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold uint32
	// Cooldown is how long the circuit stays open before allowing probes
	Cooldown time.Duration
	// HalfOpenProbes is the number of concurrent probe calls allowed while half-open
	HalfOpenProbes uint32
}

// Validate checks the configuration for zero values.
func (c BreakerConfig) Validate() error {
	if c.FailureThreshold == 0 {
		return fmt.Errorf("%w: FailureThreshold must be greater than 0", ErrInvalidBreakerConfig)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("%w: Cooldown must be greater than 0", ErrInvalidBreakerConfig)
	}
	if c.HalfOpenProbes == 0 {
		return fmt.Errorf("%w: HalfOpenProbes must be greater than 0", ErrInvalidBreakerConfig)
	}
	return nil
}

// DefaultBreakerConfig returns the defaults used by notification channels.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
		HalfOpenProbes:   1,
	}
}

// Breaker guards an unreliable downstream (webhook endpoint, chat API)
// so repeated failures stop consuming request-path time.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     BreakerState
	failures  uint32
	probes    uint32
	openedAt  time.Time
	now       func() time.Time // injectable for tests
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(cfg BreakerConfig) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Breaker{cfg: cfg, state: BreakerClosed, now: time.Now}, nil
}

// MustNewBreaker is NewBreaker for configurations known to be valid. It
// panics on a validation error.
func MustNewBreaker(cfg BreakerConfig) *Breaker {
	b, err := NewBreaker(cfg)
	if err != nil {
		panic(err)
	}
	return b
}

// Allow reports whether a call may proceed. While open, the cooldown is
// checked and the breaker transitions to half-open when it elapses.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) <= b.cfg.Cooldown {
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		b.probes = 1
		return nil
	default: // half-open
		if b.probes >= b.cfg.HalfOpenProbes {
			return ErrBreakerSaturated
		}
		b.probes++
		return nil
	}
}

// Success records a completed call. A success while half-open closes the
// circuit and resets the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
		b.probes = 0
	}
	b.failures = 0
}

// Failure records a failed call. Reaching the threshold while closed, or
// any failure while half-open, opens the circuit.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	case BreakerHalfOpen:
		b.trip()
	}
}

// trip opens the circuit. Caller holds b.mu.
func (b *Breaker) trip() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.probes = 0
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probes = 0
}
