package tui

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPanelToggleManagerDefaultsAllVisible(t *testing.T) {
	m, err := NewPanelToggleManager(filepath.Join(t.TempDir(), "panels.json"))
	require.NoError(t, err)
	for _, p := range allPanelTypes {
		require.True(t, m.Visible(p))
	}
	require.Equal(t, PanelStatus, m.Selected())
}

func TestPanelToggleManagerRejectsHidingLastVisible(t *testing.T) {
	m, err := NewPanelToggleManager(filepath.Join(t.TempDir(), "panels.json"))
	require.NoError(t, err)
	for _, p := range allPanelTypes {
		if p == PanelStatus {
			continue
		}
		require.NoError(t, m.Toggle(p))
	}
	require.ErrorIs(t, m.Toggle(PanelStatus), ErrNoPanelsVisible)
}

func TestPanelToggleManagerAliasNormalization(t *testing.T) {
	m, err := NewPanelToggleManager(filepath.Join(t.TempDir(), "panels.json"))
	require.NoError(t, err)
	require.True(t, m.Visible(PanelType("balance")))
	require.NoError(t, m.Toggle(PanelType("balance")))
	require.False(t, m.Visible(PanelBalances))
}

func TestPanelToggleManagerFocusRingWrapsAround(t *testing.T) {
	m, err := NewPanelToggleManager(filepath.Join(t.TempDir(), "panels.json"))
	require.NoError(t, err)

	first := m.Selected()
	n := len(m.visibleOrder())
	for i := 0; i < n; i++ {
		m.FocusNext()
	}
	require.Equal(t, first, m.Selected(), "focus ring should return to start after a full cycle")

	m.FocusPrev()
	require.NotEqual(t, first, m.Selected())
}

func TestPanelToggleManagerSelectionMovesWhenHidden(t *testing.T) {
	m, err := NewPanelToggleManager(filepath.Join(t.TempDir(), "panels.json"))
	require.NoError(t, err)
	require.NoError(t, m.Toggle(PanelStatus))
	require.NotEqual(t, PanelStatus, m.Selected())
	require.True(t, m.Visible(m.Selected()))
}

func TestPanelToggleManagerSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panels.json")
	m, err := NewPanelToggleManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Toggle(PanelLogs))
	require.NoError(t, m.Save())

	reloaded, err := NewPanelToggleManager(path)
	require.NoError(t, err)
	require.False(t, reloaded.Visible(PanelLogs))
}
