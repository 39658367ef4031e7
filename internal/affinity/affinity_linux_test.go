//go:build linux

package affinity

import (
	"runtime"
	"testing"

	"github.com/momentics/socev/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPinAndRelease(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var before unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &before))
	cpu := -1
	for i := 0; i < 1024; i++ {
		if before.IsSet(i) {
			cpu = i
			break
		}
	}
	require.GreaterOrEqual(t, cpu, 0)

	release, err := Pin(cpu)
	require.NoError(t, err)

	var pinned unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &pinned))
	assert.Equal(t, 1, pinned.Count())
	assert.True(t, pinned.IsSet(cpu))

	release()
	var after unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &after))
	assert.Equal(t, before, after)
}

func TestPinRejectsUnknownCPU(t *testing.T) {
	release, err := Pin(-1)
	require.ErrorIs(t, err, api.ErrConfigInvalid)
	release()
}

func TestNumCPUsMatchesAffinity(t *testing.T) {
	var set unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &set))
	assert.Equal(t, set.Count(), NumCPUs())
}
