package automation

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessLockAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automation.pid")
	l := NewProcessLock(path)

	require.NoError(t, l.Acquire())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(b))

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestProcessLockReapsStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automation.pid")
	// a PID astronomically unlikely to be alive.
	require.NoError(t, os.WriteFile(path, []byte("999999"), 0o644))

	l := NewProcessLock(path)
	require.NoError(t, l.Acquire())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(b))
}

func TestProcessLockRejectsLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automation.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	l := NewProcessLock(path)
	err := l.Acquire()
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestProcessLockReleaseIsNoOpForForeignPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automation.pid")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o644))

	l := NewProcessLock(path)
	require.NoError(t, l.Release())
	_, err := os.Stat(path)
	require.NoError(t, err, "release must not remove a lock file owned by another pid")
}
