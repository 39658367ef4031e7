//go:build !linux

// File: internal/affinity/affinity_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import "github.com/momentics/socev/api"

func platformPin(int) (func(), error) {
	return nil, api.ErrNotSupported
}

func allowedCPUs() int { return 0 }
