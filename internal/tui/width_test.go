package tui

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCellWidthASCIIAndControl(t *testing.T) {
	cw := NewCellWidth()
	env := TerminalEnv{CJK: false, TabWidth: 8}

	require.Equal(t, 1, cw.Width("a", env))
	require.Equal(t, 0, cw.Width("\x01", env))
	require.Equal(t, 0, cw.Width("\x7F", env))
}

func TestCellWidthZeroWidthMarks(t *testing.T) {
	cw := NewCellWidth()
	env := TerminalEnv{}

	require.Equal(t, 0, cw.Width("́", env), "combining acute accent")
	require.Equal(t, 0, cw.Width("‍", env), "ZWJ")
	require.Equal(t, 0, cw.Width("️", env), "variation selector-16")
}

func TestCellWidthCJKConditional(t *testing.T) {
	cw := NewCellWidth()

	require.Equal(t, 2, cw.Width("中", TerminalEnv{CJK: true}), "CJK ideograph with cjk=true")
	require.Equal(t, 1, cw.Width("中", TerminalEnv{CJK: false}), "CJK ideograph with cjk=false")
}

func TestCellWidthBoxDrawingAlwaysOne(t *testing.T) {
	cw := NewCellWidth()
	require.Equal(t, 1, cw.Width("─", TerminalEnv{CJK: true}))
	require.Equal(t, 1, cw.Width("─", TerminalEnv{CJK: false}))
}

func TestCellWidthCacheHitRate(t *testing.T) {
	cw := NewCellWidth()
	env := TerminalEnv{}
	for i := 0; i < 10; i++ {
		cw.Width("x", env)
	}
	require.Greater(t, cw.HitRate(), 0.85)
}

func TestCellWidthMonotonicityOverDisjointClusters(t *testing.T) {
	cw := NewCellWidth()
	env := TerminalEnv{CJK: true}

	wa := cw.StringWidth("ab", env)
	wb := cw.StringWidth("cd", env)
	wab := cw.StringWidth("abcd", env)
	require.Equal(t, wa+wb, wab)
}
