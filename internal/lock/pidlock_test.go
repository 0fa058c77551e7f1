package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "intake.pid")
	l, err := Acquire(lockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	pid, err := ReadPID(lockPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, lockPath, l.Path())
}

func TestAcquireIsExclusive(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "intake.pid")
	l1, err := Acquire(lockPath)
	require.NoError(t, err)

	// flock is per open file description, so a second open in the same
	// process still conflicts.
	_, err = Acquire(lockPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l1.Release())
	_, statErr := os.Stat(lockPath)
	assert.True(t, os.IsNotExist(statErr), "released lock file is removed")

	l2, err := Acquire(lockPath)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestReleaseNil(t *testing.T) {
	var l *PIDLock
	assert.NoError(t, l.Release())
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "intake.db.lock"), PathFor(filepath.Join("data", "intake.db")))
	assert.Equal(t, filepath.Join("var", "ledger.lock"), PathFor(filepath.Join("var", "ledger")))
	assert.Equal(t, filepath.Join("data", "intake.db.lock"), PathFor("./data/intake.db"))
}

func TestReadPID_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(p, []byte("nope\n"), 0o600))
	_, err := ReadPID(p)
	assert.Error(t, err)

	_, err = ReadPID(filepath.Join(t.TempDir(), "missing.pid"))
	assert.Error(t, err)
}
