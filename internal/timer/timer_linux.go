//go:build linux

// File: internal/timer/timer_linux.go
// Author: momentics <momentics@gmail.com>
//
// timerfd(2) backed one-shot timer whose descriptor is pollable by epoll.

package timer

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Timer is a one-shot countdown exposed as a file descriptor that becomes
// readable once per expiration.
type Timer struct {
	fd int
}

// New creates a disarmed timer.
func New() (*Timer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("timerfd create: %w", err)
	}
	return &Timer{fd: fd}, nil
}

// FD returns the pollable descriptor, or -1 once closed.
func (t *Timer) FD() int { return t.fd }

// Arm schedules a single expiration d from now, replacing any pending one.
// A non-positive d disarms the timer.
func (t *Timer) Arm(d time.Duration) error {
	if d <= 0 {
		return t.Disarm()
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(int64(d))}
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return fmt.Errorf("timerfd settime: %w", err)
	}
	return nil
}

// ArmAt schedules a single expiration at deadline. Deadlines already in the
// past expire immediately.
func (t *Timer) ArmAt(deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		// it_value of zero would disarm, so use the smallest possible delay
		d = time.Nanosecond
	}
	return t.Arm(d)
}

// Disarm cancels a pending expiration. Expirations that already happened but
// were not consumed are discarded as well.
func (t *Timer) Disarm() error {
	var spec unix.ItimerSpec
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return fmt.Errorf("timerfd disarm: %w", err)
	}
	return nil
}

// Armed reports whether an expiration is pending.
func (t *Timer) Armed() (bool, error) {
	var cur unix.ItimerSpec
	if err := unix.TimerfdGettime(t.fd, &cur); err != nil {
		return false, fmt.Errorf("timerfd gettime: %w", err)
	}
	return cur.Value.Sec != 0 || cur.Value.Nsec != 0, nil
}

// Consume reads the number of expirations since the last call. It returns
// zero without error when nothing expired.
func (t *Timer) Consume() (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(t.fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, fmt.Errorf("timerfd read: %w", err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("timerfd read: short read of %d bytes", n)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

// Close releases the descriptor. Calling Close again is a no-op.
func (t *Timer) Close() error {
	if t.fd < 0 {
		return nil
	}
	fd := t.fd
	t.fd = -1
	return unix.Close(fd)
}
