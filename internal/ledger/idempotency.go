package ledger

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// idempotencyCapDefault is the LRU cap (~100,000).
const idempotencyCapDefault = 100_000

// eventKey is (source_system, source_event_id).
type eventKey struct {
	source  string
	eventID string
}

// IdempotencyGate is a bounded, hot-cache dedup layer keyed on
// (source_system, source_event_id). It is NOT durable: entries evicted
// past the LRU cap are "assumed new" — durable dedup lives in the ledger
// store via transfer id.
type IdempotencyGate struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewIdempotencyGate builds a gate with the given capacity (0 = default).
func NewIdempotencyGate(capacity int) *IdempotencyGate {
	if capacity <= 0 {
		capacity = idempotencyCapDefault
	}
	c, err := lru.New(capacity)
	if err != nil {
		// lru.New only errors on capacity<=0, excluded above.
		panic(err)
	}
	return &IdempotencyGate{cache: c}
}

// VerifyUnique inserts (source,eventID) and reports ErrDuplicateEvent if it
// was already present. Safe for concurrent callers.
func (g *IdempotencyGate) VerifyUnique(source, eventID string) error {
	if eventID == "" {
		return nil // no event id: caller's write path has no idempotency key
	}
	key := eventKey{source: source, eventID: eventID}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.cache.Get(key); ok {
		return ErrDuplicateEvent
	}
	g.cache.Add(key, struct{}{})
	return nil
}

// Len reports the number of keys currently cached (for metrics/tests).
func (g *IdempotencyGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Len()
}
