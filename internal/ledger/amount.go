package ledger

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 128-bit integer quantity expressed at an asset's
// fixed scale (e.g. satoshis, or USDC's 6-decimal minor units). It is backed
// by a uint256.Int, well within its 256-bit range.
type Amount struct {
	v uint256.Int
}

// Zero is the additive identity.
var Zero = Amount{}

// NewAmount constructs an Amount from a non-negative int64 minor-unit value.
func NewAmount(minorUnits int64) Amount {
	if minorUnits < 0 {
		panic("ledger: negative amount")
	}
	var a Amount
	a.v.SetUint64(uint64(minorUnits))
	return a
}

// AmountFromUint64 constructs an Amount from minor units.
func AmountFromUint64(minorUnits uint64) Amount {
	var a Amount
	a.v.SetUint64(minorUnits)
	return a
}

func (a Amount) IsZero() bool { return a.v.IsZero() }

func (a Amount) String() string { return a.v.Dec() }

func (a Amount) Uint64() uint64 { return a.v.Uint64() }

// Add returns a+b. Panics on uint256 overflow (practically unreachable at
// real asset scales, and treated as a programming error, not user input).
func (a Amount) Add(b Amount) Amount {
	var r Amount
	if _, overflow := r.v.AddOverflow(&a.v, &b.v); overflow {
		panic("ledger: amount overflow")
	}
	return r
}

// Sub returns a-b. The caller must ensure a >= b; ledger invariants (the
// DEBITS_MUST_NOT_EXCEED_CREDITS family) are checked before any Sub that
// could otherwise underflow.
func (a Amount) Sub(b Amount) Amount {
	var r Amount
	if _, underflow := r.v.SubOverflow(&a.v, &b.v); underflow {
		panic("ledger: amount underflow")
	}
	return r
}

func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

func (a Amount) LessThan(b Amount) bool    { return a.Cmp(b) < 0 }
func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }

// SignedDelta is a signed balance delta (credits_accepted - debits_accepted
// can be negative), stored as a sign bit plus an unsigned magnitude since
// uint256 has no signed counterpart in this dependency.
type SignedDelta struct {
	Negative  bool
	Magnitude Amount
}

// SignedSub computes credit-debit as a signed delta.
func SignedSub(credit, debit Amount) SignedDelta {
	if credit.Cmp(debit) >= 0 {
		return SignedDelta{Magnitude: credit.Sub(debit)}
	}
	return SignedDelta{Negative: true, Magnitude: debit.Sub(credit)}
}

func (d SignedDelta) String() string {
	if d.Negative && !d.Magnitude.IsZero() {
		return "-" + d.Magnitude.String()
	}
	return d.Magnitude.String()
}

// IsNegative reports whether the delta is strictly below zero.
func (d SignedDelta) IsNegative() bool { return d.Negative && !d.Magnitude.IsZero() }

// ScaleRegistry is the process-wide, frozen-after-init table of asset ->
// decimal scale (number of minor-unit digits). Writes are locked under
// Freeze() unless migration_mode=true is passed explicitly per call.
type ScaleRegistry struct {
	mu     sync.RWMutex
	scales map[string]uint8
	frozen bool
}

// NewScaleRegistry returns an empty, unfrozen registry.
func NewScaleRegistry() *ScaleRegistry {
	return &ScaleRegistry{scales: make(map[string]uint8)}
}

// ErrRegistryFrozen is returned by Set once the registry is frozen and the
// caller did not pass migrationMode=true.
var ErrRegistryFrozen = fmt.Errorf("ledger: scale registry is frozen")

// Set registers asset's scale. Fails with ErrRegistryFrozen post-Freeze()
// unless migrationMode is true.
func (r *ScaleRegistry) Set(asset string, scale uint8, migrationMode bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen && !migrationMode {
		return ErrRegistryFrozen
	}
	r.scales[normalizeAsset(asset)] = scale
	return nil
}

// Scale returns the registered scale for asset, or ok=false if unknown.
func (r *ScaleRegistry) Scale(asset string) (uint8, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scales[normalizeAsset(asset)]
	return s, ok
}

// Freeze flips the frozen flag exactly once; intended to be called by
// production bootstrap after initial asset scales are loaded.
func (r *ScaleRegistry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *ScaleRegistry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func normalizeAsset(asset string) string {
	b := []byte(asset)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
