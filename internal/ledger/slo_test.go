package ledger

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestSLOMonitorBreachesOnLatency(t *testing.T) {
	target := DefaultSLOTarget()
	m := NewSLOMonitor(target, prometheus.NewRegistry(), nil)

	for i := 0; i < 100; i++ {
		m.Observe(5*time.Millisecond, true)
	}
	require.False(t, m.Status().Breached)

	for i := 0; i < 100; i++ {
		m.Observe(500*time.Millisecond, true)
	}
	require.True(t, m.Status().Breached)
}

func TestSLOMonitorDriftGateBlocksCutover(t *testing.T) {
	target := DefaultSLOTarget()
	m := NewSLOMonitor(target, prometheus.NewRegistry(), nil)
	m.Observe(1*time.Millisecond, true)

	require.True(t, m.CutoverAllowed())
	m.OpenDriftGate()
	require.False(t, m.CutoverAllowed())
	m.CloseDriftGate()
	require.True(t, m.CutoverAllowed())
}

func TestSLOMonitorErrorRate(t *testing.T) {
	target := DefaultSLOTarget()
	m := NewSLOMonitor(target, prometheus.NewRegistry(), nil)
	for i := 0; i < 199; i++ {
		m.Observe(time.Millisecond, true)
	}
	m.Observe(time.Millisecond, false)
	require.False(t, m.Status().Breached, "1 failure in 200 is at the 0.5%% boundary, not over it")

	m.Observe(time.Millisecond, false)
	require.True(t, m.Status().Breached)
}
