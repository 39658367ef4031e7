//go:build !linux
// +build !linux

// control/platform_other.go
// Author: momentics <momentics@gmail.com>

package control

import "github.com/momentics/socev/internal/affinity"

// RegisterPlatformProbes sets the portable subset of platform probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return affinity.NumCPUs()
	})
}
