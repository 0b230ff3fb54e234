package state

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock is an advisory exclusive lock scoped to one state file, backed by
// a .lock sibling held open for the lock's lifetime. It serializes
// concurrent local invocations contending for the same state; it is not
// a distributed lock.
type Lock struct {
	fl *flock.Flock
}

// NewLock returns an unacquired lock for the state file at statePath.
func NewLock(statePath string) *Lock {
	return &Lock{fl: flock.New(statePath + ".lock")}
}

// Acquire blocks until the exclusive lock is held.
func (l *Lock) Acquire() error {
	if err := l.fl.Lock(); err != nil {
		return &LockError{Path: l.fl.Path(), Err: err}
	}
	return nil
}

// Release drops the lock. The .lock file itself stays behind; it carries
// no meaningful content.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return &LockError{Path: l.fl.Path(), Err: err}
	}
	return nil
}

// LockError reports a failure to acquire or release the state lock.
type LockError struct {
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("state lock %s: %v", e.Path, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }
