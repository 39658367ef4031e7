//go:build linux

// File: can/filter_linux.go
// Author: momentics <momentics@gmail.com>
//
// Filter endpoints and their timers.

package can

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/socev/api"
	"github.com/momentics/socev/control"
	"github.com/momentics/socev/internal/registry"
	"github.com/momentics/socev/internal/timer"
	"golang.org/x/sys/unix"
)

// Filter is one configured identifier/mask filter on a bus. Timer methods
// on a disabled timer do nothing.
type Filter struct {
	ctx   *Context
	ref   registry.Ref
	bus   *bus
	index int

	canID       uint32
	mask        uint32
	recvTimeout time.Duration
	sendTimeout time.Duration
	recvTimer   *timer.Timer
	sendTimer   *timer.Timer
	lastExpired TimerKind
}

var _ api.Endpoint = (*Filter)(nil)

// ID is unique for the lifetime of the Context.
func (f *Filter) ID() uint64 { return f.ref.ID() }

// Index is the position in Config.Filters.
func (f *Filter) Index() int { return f.index }

// Bus is the bus name.
func (f *Filter) Bus() string { return f.bus.name }

// CANID is the configured identifier.
func (f *Filter) CANID() uint32 { return f.canID }

// Mask is the configured mask.
func (f *Filter) Mask() uint32 { return f.mask }

// RecvTimeout is zero when the receive timer is disabled.
func (f *Filter) RecvTimeout() time.Duration { return f.recvTimeout }

// SendTimeout is zero when the send timer is disabled.
func (f *Filter) SendTimeout() time.Duration { return f.sendTimeout }

// LastExpired reports which timer produced the latest EventTimerExpired.
func (f *Filter) LastExpired() TimerKind { return f.lastExpired }

// Matches applies this filter to a frame the way the kernel does.
func (f *Filter) Matches(fr Frame) bool { return fr.Matches(f.canID, f.mask) }

func (f *Filter) check() error {
	if f.ctx.closed {
		return api.ErrStaleEndpoint
	}
	return nil
}

// StartRecvTimer re-arms the receive timeout. The reactor also does this
// before delivering each matching frame.
func (f *Filter) StartRecvTimer() error {
	if err := f.check(); err != nil {
		return err
	}
	return arm(f.recvTimer, f.recvTimeout)
}

// StopRecvTimer cancels a pending receive timeout.
func (f *Filter) StopRecvTimer() error {
	if err := f.check(); err != nil {
		return err
	}
	return disarm(f.recvTimer)
}

// StartSendTimer starts the send deadline, typically right after queueing a
// request whose answer must be sent in time. StopSendTimer cancels it, and so
// does a successful Send of a frame this filter matches.
func (f *Filter) StartSendTimer() error {
	if err := f.check(); err != nil {
		return err
	}
	return arm(f.sendTimer, f.sendTimeout)
}

// StopSendTimer cancels a pending send deadline.
func (f *Filter) StopSendTimer() error {
	if err := f.check(); err != nil {
		return err
	}
	return disarm(f.sendTimer)
}

// Send writes one frame to the filter's bus with a single non-blocking write.
// A full transmit queue yields api.ErrWouldBlock. Only frames the filter
// matches stop the send timer.
func (f *Filter) Send(fr Frame) error {
	if err := f.check(); err != nil {
		return err
	}
	var buf [FrameSize]byte
	if err := fr.put(buf[:]); err != nil {
		return api.NewError(api.ErrCodeConfigInvalid, "can: invalid frame").WithCause(err)
	}
	n, err := unix.Write(f.bus.fd, buf[:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOBUFS) {
			return api.ErrWouldBlock
		}
		f.ctx.opts.metrics.Inc(control.MetricIoFailures)
		return api.NewError(api.ErrCodeIoFailure, "can: write").
			WithContext("bus", f.bus.name).
			WithCause(err)
	}
	if n != FrameSize {
		f.ctx.opts.metrics.Inc(control.MetricIoFailures)
		return api.NewError(api.ErrCodeIoFailure, "can: short write").
			WithContext("bus", f.bus.name).
			WithContext("written", n)
	}
	f.ctx.opts.metrics.Inc(control.MetricFramesSent)
	if !f.Matches(fr) {
		return nil
	}
	return disarm(f.sendTimer)
}

func (f *Filter) String() string {
	return fmt.Sprintf("can.Filter(%s, %#x/%#x)", f.bus.name, f.canID, f.mask)
}
