//go:build !linux

// File: internal/timer/timer_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package timer

import (
	"time"

	"github.com/momentics/socev/api"
)

// Timer is unavailable on this platform.
type Timer struct{}

// New returns an error for unsupported platforms.
func New() (*Timer, error) { return nil, api.ErrNotSupported }

func (*Timer) FD() int { return -1 }
func (*Timer) Arm(time.Duration) error { return api.ErrNotSupported }
func (*Timer) ArmAt(time.Time) error { return api.ErrNotSupported }
func (*Timer) Disarm() error { return api.ErrNotSupported }
func (*Timer) Armed() (bool, error) { return false, api.ErrNotSupported }
func (*Timer) Consume() (uint64, error) { return 0, api.ErrNotSupported }
func (*Timer) Close() error { return nil }
