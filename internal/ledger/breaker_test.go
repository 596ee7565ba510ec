package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultBreakerConfig("test")
	cfg.FailureThreshold = 3
	cfg.RecoveryTimeout = 50 * time.Millisecond
	cb := NewCircuitBreaker(cfg)

	for i := 0; i < 3; i++ {
		require.True(t, cb.Allow())
		cb.RecordResult(false)
	}

	require.False(t, cb.Allow(), "breaker should be open after consecutive failures")
}

func TestCircuitBreakerHalfOpensAfterTimeout(t *testing.T) {
	cfg := DefaultBreakerConfig("test")
	cfg.FailureThreshold = 1
	cfg.RecoveryTimeout = 20 * time.Millisecond
	cb := NewCircuitBreaker(cfg)

	require.True(t, cb.Allow())
	cb.RecordResult(false)
	require.False(t, cb.Allow())

	require.Eventually(t, func() bool {
		return cb.Allow()
	}, time.Second, 5*time.Millisecond, "breaker should allow a half-open probe after recovery timeout")

	cb.RecordResult(true)
}
