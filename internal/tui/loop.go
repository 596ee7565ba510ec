package tui

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Priority orders coalesced flush requests; input pre-empts any pending
// debounce window
type Priority int

const (
	PriorityTelemetry Priority = iota
	PriorityNormal
	PriorityInput
)

const frameInterval = time.Second / 60 // 16.67ms, the 60Hz cap

// RenderLoop coalesces flush requests into at most one per frame window,
// except an input-priority request which pre-empts the debounce.
// Adaptively widens the debounce (x1.5, capped at 100ms) when a
// telemetry-priority flush overruns 16ms
type RenderLoop struct {
	flush func(context.Context)

	mu           sync.Mutex
	debounce     time.Duration
	pendingPrio  Priority
	hasPending   bool
	resizePending bool

	limiter *rate.Limiter
	wake    chan struct{}
}

// NewRenderLoop builds a loop that calls flush on each coalesced frame.
func NewRenderLoop(flush func(context.Context)) *RenderLoop {
	return &RenderLoop{
		flush:    flush,
		debounce: frameInterval,
		limiter:  rate.NewLimiter(rate.Every(frameInterval), 1),
		wake:     make(chan struct{}, 1),
	}
}

// Request enqueues a flush at the given priority. An input-priority
// request always wakes the loop immediately, pre-empting any debounce.
func (l *RenderLoop) Request(prio Priority) {
	l.mu.Lock()
	if !l.hasPending || prio > l.pendingPrio {
		l.pendingPrio = prio
	}
	l.hasPending = true
	l.mu.Unlock()

	if prio == PriorityInput {
		l.nudge()
	}
}

// RequestResize marks a resize; at most one resize is coalesced per
// frame, and it invalidates the full buffer (the caller's flush callback
// is expected to check PendingResize and force a full redraw).
func (l *RenderLoop) RequestResize() {
	l.mu.Lock()
	l.resizePending = true
	l.mu.Unlock()
	l.Request(PriorityNormal)
}

// PendingResize reports and clears the resize flag.
func (l *RenderLoop) PendingResize() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	pending := l.resizePending
	l.resizePending = false
	return pending
}

func (l *RenderLoop) nudge() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drives the coalescing loop until ctx is cancelled.
func (l *RenderLoop) Run(ctx context.Context) {
	timer := time.NewTimer(l.currentDebounce())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			l.flushIfPending(ctx)
			l.resetTimer(timer)
		case <-timer.C:
			l.flushIfPending(ctx)
			l.resetTimer(timer)
		}
	}
}

func (l *RenderLoop) resetTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(l.currentDebounce())
}

func (l *RenderLoop) currentDebounce() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debounce
}

func (l *RenderLoop) flushIfPending(ctx context.Context) {
	l.mu.Lock()
	if !l.hasPending {
		l.mu.Unlock()
		return
	}
	prio := l.pendingPrio
	l.hasPending = false
	l.pendingPrio = PriorityTelemetry
	l.mu.Unlock()

	if !l.limiter.Allow() && prio != PriorityInput {
		// over the 60Hz cap and not pre-empting: defer to next window
		l.mu.Lock()
		l.hasPending = true
		if prio > l.pendingPrio {
			l.pendingPrio = prio
		}
		l.mu.Unlock()
		return
	}

	start := time.Now()
	l.flush(ctx)
	elapsed := time.Since(start)

	if prio == PriorityTelemetry && elapsed > 16*time.Millisecond {
		l.mu.Lock()
		l.debounce = time.Duration(float64(l.debounce) * 1.5)
		if l.debounce > 100*time.Millisecond {
			l.debounce = 100 * time.Millisecond
		}
		l.mu.Unlock()
	}
}
