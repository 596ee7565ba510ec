package tui

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderLoopCoalescesBurstIntoFewFlushes(t *testing.T) {
	var calls atomic.Int64
	l := NewRenderLoop(func(ctx context.Context) { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	for i := 0; i < 20; i++ {
		l.Request(PriorityNormal)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	require.Less(t, calls.Load(), int64(20), "a burst of requests must coalesce into fewer flushes than requests")
}

func TestRenderLoopInputPreemptsDebounce(t *testing.T) {
	var calls atomic.Int64
	l := NewRenderLoop(func(ctx context.Context) { calls.Add(1) })
	l.debounce = time.Hour // would never fire on its own timer

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Request(PriorityInput)
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()
}

func TestRenderLoopResizeFlagSetAndCleared(t *testing.T) {
	l := NewRenderLoop(func(ctx context.Context) {})
	require.False(t, l.PendingResize())
	l.RequestResize()
	require.True(t, l.PendingResize())
	require.False(t, l.PendingResize(), "PendingResize clears the flag on read")
}

func TestRenderLoopWidensDebounceOnSlowTelemetryFlush(t *testing.T) {
	l := NewRenderLoop(func(ctx context.Context) { time.Sleep(20 * time.Millisecond) })
	before := l.currentDebounce()

	l.Request(PriorityTelemetry)
	l.flushIfPending(context.Background())

	require.Greater(t, l.currentDebounce(), before)
}
