package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	lock := NewLock(path)

	require.NoError(t, lock.Acquire())
	_, err := os.Stat(path + ".lock")
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	_, err = os.Stat(path + ".lock")
	assert.NoError(t, err, "lock file stays behind after release")

	again := NewLock(path)
	require.NoError(t, again.Acquire())
	require.NoError(t, again.Release())
}

func TestLockBlocksSecondAcquirer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	first := NewLock(path)
	require.NoError(t, first.Acquire())

	acquired := make(chan struct{})
	go func() {
		second := NewLock(path)
		if err := second.Acquire(); err == nil {
			close(acquired)
			_ = second.Release()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must block while the lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Release())

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire must proceed once released")
	}
}
