// Package lock serializes cross-process access to the schema cache
// file. bbolt only guards against concurrent access from within one
// process; a second pgreplay invocation opening the same cache file
// needs an OS-level lock around it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another process is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition.
const (
	// TimeoutImmediate returns immediately if the lock cannot be acquired (no wait).
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing cache access.
	TimeoutShort = 1 * time.Second

	// TimeoutMedium provides a reasonable wait for transient conflicts.
	TimeoutMedium = 10 * time.Second

	// TimeoutLong allows extended waiting for lock acquisition.
	TimeoutLong = 60 * time.Second
)

const pollInterval = 20 * time.Millisecond

// FileLock is an OS-level advisory lock (flock(2)) held against a
// sidecar file next to the resource it protects. There is no server
// session to hold the lock for us; the lock's lifetime is exactly the
// lifetime of the open file descriptor kept in this struct.
type FileLock struct {
	path string
	file *os.File
	held bool
}

// New creates a file lock guarding path. The lock file itself (path+".lock")
// is created on first acquisition and never removed, mirroring flock's own
// semantics: the lock is held on the inode, not the directory entry.
func New(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// TryAcquire attempts to acquire the lock immediately without waiting.
func (l *FileLock) TryAcquire() (bool, error) {
	if l.held {
		return true, nil
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return false, fmt.Errorf("open lock file %q: %w", l.path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock %q: %w", l.path, err)
	}

	l.file = f
	l.held = true
	return true, nil
}

// Acquire polls for the lock until acquired, timeout elapses, or ctx is
// cancelled. A timeout of TimeoutImmediate behaves like TryAcquire.
func (l *FileLock) Acquire(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		acquired, err := l.TryAcquire()
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		if timeout <= TimeoutImmediate || time.Now().After(deadline) {
			return fmt.Errorf("%w: %q is held by another process", ErrLockTimeout, l.path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Release releases the lock and closes the underlying file descriptor.
func (l *FileLock) Release() error {
	if !l.held {
		return nil
	}
	unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.held = false
	l.file = nil
	if unlockErr != nil {
		return fmt.Errorf("unlock %q: %w", l.path, unlockErr)
	}
	return closeErr
}

// IsHeld returns true if this FileLock currently holds the lock.
func (l *FileLock) IsHeld() bool {
	return l.held
}

// WithLock acquires the lock, runs fn, and releases the lock before
// returning — even if fn panics.
func (l *FileLock) WithLock(ctx context.Context, timeout time.Duration, fn func() error) error {
	if err := l.Acquire(ctx, timeout); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer l.Release()
	return fn()
}
