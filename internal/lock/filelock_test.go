package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "schema.db")
}

func TestNew_NotHeldUntilAcquired(t *testing.T) {
	l := New(lockPath(t))
	assert.False(t, l.IsHeld())
}

func TestTryAcquire_SucceedsWhenFree(t *testing.T) {
	l := New(lockPath(t))

	acquired, err := l.TryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, l.IsHeld())
}

func TestTryAcquire_IsIdempotentForSameHolder(t *testing.T) {
	l := New(lockPath(t))

	ok1, err := l.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, err := l.TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok2, "re-acquiring a lock already held by this handle must be a no-op")
}

func TestTryAcquire_FailsWhileAnotherHandleHoldsIt(t *testing.T) {
	path := lockPath(t)
	holder := New(path)
	ok, err := holder.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Release()

	contender := New(path)
	acquired, err := contender.TryAcquire()
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.False(t, contender.IsHeld())
}

func TestRelease_AllowsAnotherHandleToAcquire(t *testing.T) {
	path := lockPath(t)
	holder := New(path)
	ok, err := holder.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, holder.Release())

	contender := New(path)
	acquired, err := contender.TryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRelease_WithoutAcquireIsNoop(t *testing.T) {
	l := New(lockPath(t))
	assert.NoError(t, l.Release())
}

func TestAcquire_ImmediateTimeoutFailsFastWhenHeld(t *testing.T) {
	path := lockPath(t)
	holder := New(path)
	ok, err := holder.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Release()

	contender := New(path)
	err = contender.Acquire(context.Background(), TimeoutImmediate)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestAcquire_SucceedsOnceHolderReleases(t *testing.T) {
	path := lockPath(t)
	holder := New(path)
	ok, err := holder.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)

	released := make(chan struct{})
	go func() {
		time.Sleep(40 * time.Millisecond)
		holder.Release()
		close(released)
	}()

	contender := New(path)
	err = contender.Acquire(context.Background(), TimeoutMedium)
	require.NoError(t, err)
	<-released
	assert.True(t, contender.IsHeld())
}

func TestWithLock_RunsFnThenReleases(t *testing.T) {
	path := lockPath(t)
	l := New(path)

	var ran bool
	err := l.WithLock(context.Background(), TimeoutShort, func() error {
		ran = true
		assert.True(t, l.IsHeld())
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, l.IsHeld())
}

func TestWithLock_ReleasesEvenWhenFnErrors(t *testing.T) {
	l := New(lockPath(t))

	err := l.WithLock(context.Background(), TimeoutShort, func() error {
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, l.IsHeld())
}
