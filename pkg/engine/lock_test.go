package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLockBlocksSecondHolder(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, "pine-lead")
	require.NoError(t, err)

	_, err = AcquireLock(dir, "pine-lead")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	// A different skill is unaffected.
	other, err := AcquireLock(dir, "pine-outreach")
	require.NoError(t, err)
	require.NoError(t, other.Release())

	require.NoError(t, lock.Release())

	relocked, err := AcquireLock(dir, "pine-lead")
	require.NoError(t, err)
	require.NoError(t, relocked.Release())
}

func TestAcquireLockTakesOverStaleLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pine-lead.lock")

	require.NoError(t, os.WriteFile(path, []byte("99999 2026-01-01T00:00:00Z\n"), 0o644))
	old := time.Now().Add(-staleLockAge - time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))

	lock, err := AcquireLock(dir, "pine-lead")
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestReleaseIsRequiredForReacquire(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir, "pine-lead")
	require.NoError(t, err)
	t.Cleanup(func() { lock.Release() })

	_, err = AcquireLock(dir, "pine-lead")
	assert.True(t, errors.Is(err, ErrLocked))
}
