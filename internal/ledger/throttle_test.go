package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackpressureThrottle(t *testing.T) {
	th := NewBackpressureThrottle(100*time.Millisecond, 1000)
	require.False(t, th.Throttled())

	th.Update(200*time.Millisecond, 10)
	require.True(t, th.Throttled(), "p99 over threshold should throttle")

	th.Update(10*time.Millisecond, 2000)
	require.True(t, th.Throttled(), "backlog over threshold should throttle")

	th.Update(10*time.Millisecond, 10)
	require.False(t, th.Throttled())
}
