//go:build linux

package reactor

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/socev/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newPipe(t *testing.T) (r, w int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		_ = unix.Close(p[0])
		_ = unix.Close(p[1])
	})
	return p[0], p[1]
}

func TestEpollRejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, api.ErrConfigInvalid)
}

func TestEpollWaitTimeoutReturnsNothing(t *testing.T) {
	ep, err := New(4)
	require.NoError(t, err)
	defer ep.Close()

	r, _ := newPipe(t)
	require.NoError(t, ep.Register(r, api.InterestRead))

	start := time.Now()
	ready, err := ep.Wait(20)
	require.NoError(t, err)
	assert.Empty(t, ready)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	ready, err = ep.Wait(0)
	require.NoError(t, err)
	assert.Empty(t, ready)
}

func TestEpollReportsReadAndWrite(t *testing.T) {
	ep, err := New(4)
	require.NoError(t, err)
	defer ep.Close()

	r, w := newPipe(t)
	require.NoError(t, ep.Register(r, api.InterestRead))
	require.NoError(t, ep.Register(w, api.InterestNone))

	// write end is always writable but registered with no interest
	ready, err := ep.Wait(0)
	require.NoError(t, err)
	assert.Empty(t, ready)

	require.NoError(t, ep.Modify(w, api.InterestWrite))
	in, ok := ep.Interest(w)
	require.True(t, ok)
	assert.Equal(t, api.InterestWrite, in)
	ready, err = ep.Wait(0)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, w, ready[0].FD)
	assert.NotZero(t, ready[0].Events&api.InterestWrite)

	_, err = unix.Write(w, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, ep.Modify(w, api.InterestNone))
	require.NoError(t, ep.Unregister(w))
	_, ok = ep.Interest(w)
	assert.False(t, ok)
	ready, err = ep.Wait(-1)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, r, ready[0].FD)
	assert.NotZero(t, ready[0].Events&api.InterestRead)
}

func TestEpollCapacity(t *testing.T) {
	ep, err := New(2)
	require.NoError(t, err)
	defer ep.Close()

	r1, w1 := newPipe(t)
	r2, _ := newPipe(t)
	require.NoError(t, ep.Register(r1, api.InterestRead))
	require.NoError(t, ep.Register(w1, api.InterestNone))
	err = ep.Register(r2, api.InterestRead)
	require.ErrorIs(t, err, api.ErrCapacityExceeded)
	require.ErrorIs(t, err, api.ErrResourceExhausted)
	assert.Equal(t, 2, ep.Len())

	require.NoError(t, ep.Unregister(w1))
	require.NoError(t, ep.Register(r2, api.InterestRead))
	assert.Equal(t, 2, ep.Cap())
}

func TestEpollDuplicateAndUnknown(t *testing.T) {
	ep, err := New(2)
	require.NoError(t, err)
	defer ep.Close()

	r, _ := newPipe(t)
	require.NoError(t, ep.Register(r, api.InterestRead))
	require.ErrorIs(t, ep.Register(r, api.InterestRead), api.ErrAlreadyExists)
	require.ErrorIs(t, ep.Modify(r+1000, api.InterestRead), api.ErrNotFound)
	require.ErrorIs(t, ep.Unregister(r+1000), api.ErrNotFound)
}

func TestEpollCloseIdempotent(t *testing.T) {
	ep, err := New(1)
	require.NoError(t, err)
	require.NoError(t, ep.Close())
	require.NoError(t, ep.Close())
	_, err = ep.Wait(0)
	require.True(t, errors.Is(err, api.ErrClosed))
}
