package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdempotencyGateRejectsDuplicate(t *testing.T) {
	gate := NewIdempotencyGate(4)

	require.NoError(t, gate.VerifyUnique("kraken", "evt-1"))
	require.ErrorIs(t, gate.VerifyUnique("kraken", "evt-1"), ErrDuplicateEvent)
	require.NoError(t, gate.VerifyUnique("coinbase", "evt-1"), "distinct source is a distinct key")
	require.Equal(t, 2, gate.Len())
}

func TestIdempotencyGateEmptyEventIDAlwaysPasses(t *testing.T) {
	gate := NewIdempotencyGate(4)
	require.NoError(t, gate.VerifyUnique("kraken", ""))
	require.NoError(t, gate.VerifyUnique("kraken", ""))
	require.Equal(t, 0, gate.Len())
}

func TestIdempotencyGateEvictsUnderCapacity(t *testing.T) {
	gate := NewIdempotencyGate(2)
	require.NoError(t, gate.VerifyUnique("a", "1"))
	require.NoError(t, gate.VerifyUnique("a", "2"))
	require.NoError(t, gate.VerifyUnique("a", "3"))
	require.LessOrEqual(t, gate.Len(), 2)
}
