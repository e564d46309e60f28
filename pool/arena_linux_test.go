//go:build linux
// +build linux

package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-net/api"
)

// Not parallel: swaps the package-level mmap.
func TestArenaInitReportsMapFailure(t *testing.T) {
	defer func(fn func(int, int64, int, int, int) ([]byte, error)) { mmap = fn }(mmap)
	mmap = func(int, int64, int, int, int) ([]byte, error) { return nil, unix.ENOMEM }

	a, err := NewArena(256, 64)
	require.NoError(t, err)

	err = a.Init()
	assert.ErrorIs(t, err, unix.ENOMEM)
	assert.Contains(t, err.Error(), "mmap")

	_, err = a.Acquire()
	assert.ErrorIs(t, err, api.ErrNotInitialized, "failed Init must leave the arena unusable")
	assert.NoError(t, a.Close())
}
