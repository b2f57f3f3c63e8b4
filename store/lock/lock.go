// Package lock provides advisory exclusive file locking for coordinating
// concurrent writers against a single repository, grounded on
// original_source/sit-core/src/lock.rs: a lock is acquired by creating (or
// opening) a lock file and taking an exclusive advisory lock on it, waiting
// while another holder has it, and released by unlocking and removing it.
package lock

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// FileLock wraps an OS advisory lock file at a fixed path. It is not
// reentrant: acquiring a FileLock already held by the same process blocks
// like any other advisory lock would.
type FileLock struct {
	path string
	fl   *flock.Flock
}

// New returns a FileLock for path without acquiring it.
func New(path string) *FileLock {
	return &FileLock{path: path, fl: flock.New(path)}
}

// Lock blocks until the lock is acquired.
func (l *FileLock) Lock() error {
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("lock: acquiring %s: %w", l.path, err)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking, reporting whether
// it succeeded.
func (l *FileLock) TryLock() (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock: try-locking %s: %w", l.path, err)
	}
	return ok, nil
}

// Unlock releases the lock and removes the lock file, mirroring the
// original's create-on-acquire/delete-on-release contract so a stale lock
// file never outlives its holder.
func (l *FileLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("lock: releasing %s: %w", l.path, err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lock: removing lock file %s: %w", l.path, err)
	}
	return nil
}
