// File: internal/affinity/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pinning of the service thread to a CPU core.

// Package affinity pins the goroutine running a reactor loop to one OS
// thread and that thread to one CPU.
package affinity

import "runtime"

// NumCPUs returns how many CPUs the calling thread may run on, which is
// the range WithCPU options can use.
func NumCPUs() int {
	if n := allowedCPUs(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Pin locks the calling goroutine to its OS thread and restricts the thread
// to cpu. The returned function restores the previous affinity and unlocks
// the thread; it must be called from the same goroutine.
func Pin(cpu int) (release func(), err error) {
	runtime.LockOSThread()
	restore, err := platformPin(cpu)
	if err != nil {
		runtime.UnlockOSThread()
		return func() {}, err
	}
	return func() {
		restore()
		runtime.UnlockOSThread()
	}, nil
}
