package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(700)
	b := NewAmount(300)

	require.Equal(t, "1000", a.Add(b).String())
	require.Equal(t, "400", a.Sub(b).String())
	require.True(t, a.GreaterThan(b))
	require.True(t, b.LessThan(a))
}

func TestAmountSubUnderflowPanics(t *testing.T) {
	require.Panics(t, func() {
		NewAmount(1).Sub(NewAmount(2))
	})
}

func TestSignedSub(t *testing.T) {
	d := SignedSub(NewAmount(5), NewAmount(10))
	require.True(t, d.IsNegative())
	require.Equal(t, "-5", d.String())

	d2 := SignedSub(NewAmount(10), NewAmount(5))
	require.False(t, d2.IsNegative())
	require.Equal(t, "5", d2.String())

	zero := SignedSub(NewAmount(0), NewAmount(0))
	require.False(t, zero.IsNegative())
}

func TestScaleRegistryFreezeBlocksFurtherWrites(t *testing.T) {
	r := NewScaleRegistry()
	require.NoError(t, r.Set("usd", 2, false))
	r.Freeze()

	err := r.Set("btc", 8, false)
	require.ErrorIs(t, err, ErrRegistryFrozen)

	require.NoError(t, r.Set("btc", 8, true), "migration_mode bypasses the freeze")
	scale, ok := r.Scale("BTC")
	require.True(t, ok)
	require.Equal(t, uint8(8), scale)
}
