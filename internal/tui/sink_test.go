package tui

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func openNonTTYFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "sink.out"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestSinkNonTTYUsesPlainWriter(t *testing.T) {
	f := openNonTTYFile(t)
	s := NewSink(f)
	require.False(t, s.IsTTY())
	defer s.Close()
}

func TestSinkAltScreenTogglesIdempotently(t *testing.T) {
	f := openNonTTYFile(t)
	s := NewSink(f)
	defer s.Close()

	require.NoError(t, s.EnterAltScreen())
	require.NoError(t, s.EnterAltScreen()) // second call is a no-op
	require.NoError(t, s.ExitAltScreen())
	require.NoError(t, s.ExitAltScreen()) // second call is a no-op
}

func TestSinkWriteCountsEAGAIN(t *testing.T) {
	f := openNonTTYFile(t)
	s := NewSink(f)
	defer s.Close()

	require.False(t, isRetryable(nil))
	require.True(t, isRetryable(syscall.EAGAIN))
	require.Equal(t, int64(0), s.EAGAINCount())

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	s.w = eagainWriter{}
	_, err = s.Write([]byte("x"))
	require.ErrorIs(t, err, syscall.EAGAIN)
	require.Equal(t, int64(1), s.EAGAINCount())
}

// eagainWriter fails every write with EAGAIN.
type eagainWriter struct{}

func (eagainWriter) Write([]byte) (int, error) { return 0, syscall.EAGAIN }

func TestSinkCloseRestoresSIGPIPEAndExitsAltScreen(t *testing.T) {
	f := openNonTTYFile(t)
	s := NewSink(f)
	require.NoError(t, s.EnterAltScreen())
	require.NoError(t, s.Close())
	require.False(t, s.altScreen)
}
