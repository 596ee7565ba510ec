package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildConfigAppliesFlagDefaults(t *testing.T) {
	fs := BuildFlagSet()
	v, err := BuildViper(fs, nil)
	require.NoError(t, err)

	cfg, err := BuildConfig(v)
	require.NoError(t, err)
	require.True(t, cfg.ExecutionEngineWrites)
	require.Equal(t, "/tmp/smartvestor-tui.sock", cfg.StateSocket)
	require.Equal(t, 6144, cfg.BytesCap)
	require.True(t, cfg.TailEdit)
}

func TestBuildConfigFlagsOverrideDefaults(t *testing.T) {
	fs := BuildFlagSet()
	v, err := BuildViper(fs, []string{"--tui-bytes-cap=2048", "--tui-tail-edit=false"})
	require.NoError(t, err)

	cfg, err := BuildConfig(v)
	require.NoError(t, err)
	require.Equal(t, 2048, cfg.BytesCap)
	require.False(t, cfg.TailEdit)
}

func TestBuildConfigEnvVarCoercion(t *testing.T) {
	t.Setenv("TUI_TAIL_EDIT", "0")
	t.Setenv("TUI_BYTES_CAP", "4096")
	t.Setenv("EXECUTIONENGINE_WRITES", "false")

	fs := BuildFlagSet()
	v, err := BuildViper(fs, nil)
	require.NoError(t, err)

	cfg, err := BuildConfig(v)
	require.NoError(t, err)
	require.False(t, cfg.TailEdit)
	require.Equal(t, 4096, cfg.BytesCap)
	require.False(t, cfg.ExecutionEngineWrites)
}

func TestBuildViperRejectsUnknownFlag(t *testing.T) {
	fs := BuildFlagSet()
	_, err := BuildViper(fs, []string{"--not-a-real-flag"})
	require.Error(t, err)
}
