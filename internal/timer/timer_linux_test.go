//go:build linux

package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// waitReadable polls the timer descriptor for up to d.
func waitReadable(t *testing.T, tm *Timer, d time.Duration) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(tm.FD()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(d/time.Millisecond))
	if err == unix.EINTR {
		return false
	}
	require.NoError(t, err)
	return n == 1 && fds[0].Revents&unix.POLLIN != 0
}

func TestTimerFiresOnce(t *testing.T) {
	tm, err := New()
	require.NoError(t, err)
	defer tm.Close()

	require.NoError(t, tm.Arm(10*time.Millisecond))
	armed, err := tm.Armed()
	require.NoError(t, err)
	require.True(t, armed)

	require.True(t, waitReadable(t, tm, time.Second))
	n, err := tm.Consume()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// one-shot: inert until re-armed
	require.False(t, waitReadable(t, tm, 30*time.Millisecond))
	n, err = tm.Consume()
	require.NoError(t, err)
	require.Zero(t, n)
	armed, err = tm.Armed()
	require.NoError(t, err)
	require.False(t, armed)
}

func TestTimerDisarmPreventsExpiration(t *testing.T) {
	tm, err := New()
	require.NoError(t, err)
	defer tm.Close()

	require.NoError(t, tm.Arm(20*time.Millisecond))
	require.NoError(t, tm.Disarm())
	require.False(t, waitReadable(t, tm, 60*time.Millisecond))
	n, err := tm.Consume()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestTimerArmZeroDisarms(t *testing.T) {
	tm, err := New()
	require.NoError(t, err)
	defer tm.Close()

	require.NoError(t, tm.Arm(20*time.Millisecond))
	require.NoError(t, tm.Arm(0))
	armed, err := tm.Armed()
	require.NoError(t, err)
	require.False(t, armed)
	require.False(t, waitReadable(t, tm, 60*time.Millisecond))
}

func TestTimerRearmReplaces(t *testing.T) {
	tm, err := New()
	require.NoError(t, err)
	defer tm.Close()

	require.NoError(t, tm.Arm(time.Hour))
	require.NoError(t, tm.Arm(5*time.Millisecond))
	require.True(t, waitReadable(t, tm, time.Second))
}

func TestTimerArmAtPast(t *testing.T) {
	tm, err := New()
	require.NoError(t, err)
	defer tm.Close()

	require.NoError(t, tm.ArmAt(time.Now().Add(-time.Second)))
	require.True(t, waitReadable(t, tm, time.Second))
}

func TestTimerCloseIdempotent(t *testing.T) {
	tm, err := New()
	require.NoError(t, err)
	require.NoError(t, tm.Close())
	require.NoError(t, tm.Close())
	require.Equal(t, -1, tm.FD())
}
