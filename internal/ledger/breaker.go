package ledger

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreaker guards ledger writes: closed/open/half-open on a rolling
// failure count, backed by sony/gobreaker's TwoStepCircuitBreaker — the
// split Store needs, since a batch's outcome is only known after Allow()
// has already let it proceed.
type CircuitBreaker struct {
	cb *gobreaker.TwoStepCircuitBreaker

	mu   sync.Mutex
	last func(success bool)
}

// BreakerConfig holds the tunable breaker parameters.
type BreakerConfig struct {
	Name              string
	FailureThreshold  uint32
	RecoveryTimeout   time.Duration
	HalfOpenSuccesses uint32
}

// DefaultBreakerConfig returns the defaults for name: 10 failures,
// 60s recovery, 3 half-open successes.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:              name,
		FailureThreshold:  10,
		RecoveryTimeout:   60 * time.Second,
		HalfOpenSuccesses: 3,
	}
}

// NewCircuitBreaker builds a CircuitBreaker from cfg.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenSuccesses,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	return &CircuitBreaker{cb: gobreaker.NewTwoStepCircuitBreaker(settings)}
}

// Allow reports whether a write may proceed. When it returns true, the
// caller MUST call RecordResult exactly once with the outcome.
func (b *CircuitBreaker) Allow() bool {
	done, err := b.cb.Allow()
	if err != nil {
		return false
	}
	b.mu.Lock()
	b.last = done
	b.mu.Unlock()
	return true
}

// RecordResult reports the outcome of the write Allow() most recently
// permitted.
func (b *CircuitBreaker) RecordResult(success bool) {
	b.mu.Lock()
	done := b.last
	b.last = nil
	b.mu.Unlock()
	if done != nil {
		done(success)
	}
}

// State reports the breaker's current state name (closed/open/half-open).
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}
