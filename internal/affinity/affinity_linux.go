//go:build linux

// File: internal/affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import (
	"github.com/momentics/socev/api"
	"golang.org/x/sys/unix"
)

func platformPin(cpu int) (func(), error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, api.NewError(api.ErrCodeIoFailure, "sched_getaffinity").WithCause(err)
	}
	if cpu < 0 || !prev.IsSet(cpu) {
		return nil, api.ConfigError("affinity: cpu %d not in the allowed set", cpu)
	}
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return nil, api.NewError(api.ErrCodeIoFailure, "sched_setaffinity").
			WithContext("cpu", cpu).
			WithCause(err)
	}
	return func() { _ = unix.SchedSetaffinity(0, &prev) }, nil
}

func allowedCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0
	}
	return set.Count()
}
