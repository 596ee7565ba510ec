package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCutoverControllerForwardTransitions(t *testing.T) {
	c := NewCutoverController(nil)
	require.Equal(t, PhaseMirror, c.Phase())
	require.True(t, c.MirrorWrites())
	require.False(t, c.ReadFromLedger())
	require.False(t, c.ShadowWritesDisabled())

	require.NoError(t, c.Advance(context.Background(), PhaseReadShadow))
	require.True(t, c.ReadFromLedger())
	require.False(t, c.ShadowWritesDisabled())

	require.NoError(t, c.Advance(context.Background(), PhaseDisableShadow))
	require.True(t, c.ShadowWritesDisabled())
}

func TestCutoverControllerRejectsSkippedPhase(t *testing.T) {
	c := NewCutoverController(nil)
	err := c.Advance(context.Background(), PhaseDisableShadow)
	require.ErrorIs(t, err, ErrInvalidPhaseTransition)
	require.Equal(t, PhaseMirror, c.Phase())
}

func TestCutoverControllerRollbackRestoresMirrorOnly(t *testing.T) {
	c := NewCutoverController(nil)
	require.NoError(t, c.Advance(context.Background(), PhaseReadShadow))
	require.NoError(t, c.Advance(context.Background(), PhaseDisableShadow))

	c.Rollback(context.Background(), "parity check failed")

	require.Equal(t, PhaseMirror, c.Phase())
	require.True(t, c.MirrorWrites())
	require.False(t, c.ReadFromLedger())
	require.False(t, c.ShadowWritesDisabled())
}
