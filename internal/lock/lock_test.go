package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	assert.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ".pysetup", "lock"))
	assert.FileExists(t, filepath.Join(dir, ".pysetup", "lock.meta"))

	meta, err := readMeta(l.Path)
	assert.NoError(t, err)
	assert.Equal(t, os.Getpid(), meta.PID)

	assert.NoError(t, l.Release())
	assert.NoFileExists(t, filepath.Join(dir, ".pysetup", "lock.meta"))
}

func TestSecondAcquireFails(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	assert.NoError(t, err)
	defer l.Release()

	_, err = Acquire(dir)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	assert.NoError(t, err)
	assert.NoError(t, l.Release())

	l2, err := Acquire(dir)
	assert.NoError(t, err)
	assert.NoError(t, l2.Release())
}

func TestReleaseNilSafe(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
