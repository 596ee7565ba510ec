package ledger

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// expiryScheduler wakes on the earliest outstanding pending-transfer
// deadline and releases reservations without an explicit void. Per the
// Open Question resolved in DESIGN.md: timeout:0 means no scheduling,
// any non-zero timeout is driven by this scheduler rather than polled.
type expiryScheduler struct {
	store *Store

	mu      sync.Mutex
	items   deadlineHeap
	index   map[TransferID]*deadlineItem
	wake    chan struct{}
}

type deadlineItem struct {
	id       TransferID
	deadline time.Time
	heapIdx  int
}

type deadlineHeap []*deadlineItem

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx, h[j].heapIdx = i, j
}
func (h *deadlineHeap) Push(x any) {
	item := x.(*deadlineItem)
	item.heapIdx = len(*h)
	*h = append(*h, item)
}
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func newExpiryScheduler(s *Store) *expiryScheduler {
	return &expiryScheduler{
		store: s,
		index: make(map[TransferID]*deadlineItem),
		wake:  make(chan struct{}, 1),
	}
}

func (e *expiryScheduler) start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		e.run(ctx)
		return nil
	})
}

// schedule registers id to expire at deadline, replacing any prior entry.
func (e *expiryScheduler) schedule(id TransferID, deadline time.Time) {
	e.mu.Lock()
	if existing, ok := e.index[id]; ok {
		existing.deadline = deadline
		heap.Fix(&e.items, existing.heapIdx)
	} else {
		item := &deadlineItem{id: id, deadline: deadline}
		heap.Push(&e.items, item)
		e.index[id] = item
	}
	e.mu.Unlock()
	e.nudge()
}

// cancel removes id from the schedule (no-op if absent).
func (e *expiryScheduler) cancel(id TransferID) {
	e.mu.Lock()
	if item, ok := e.index[id]; ok {
		heap.Remove(&e.items, item.heapIdx)
		delete(e.index, id)
	}
	e.mu.Unlock()
}

func (e *expiryScheduler) nudge() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *expiryScheduler) nextDeadline() (TransferID, time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.items) == 0 {
		return TransferID{}, time.Time{}, false
	}
	top := e.items[0]
	return top.id, top.deadline, true
}

func (e *expiryScheduler) run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		id, deadline, ok := e.nextDeadline()
		if !ok {
			timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-e.wake:
				continue
			}
		}
		wait := time.Until(deadline)
		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
			continue
		case <-timer.C:
			e.mu.Lock()
			if item, ok := e.index[id]; ok && !item.deadline.After(time.Now()) {
				heap.Remove(&e.items, item.heapIdx)
				delete(e.index, id)
				e.mu.Unlock()
				e.store.expirePending(id)
			} else {
				e.mu.Unlock()
			}
		}
	}
}
