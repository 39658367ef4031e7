//go:build linux

// File: tcp/client_linux.go
// Author: momentics <momentics@gmail.com>
//
// Per-connection operations available to the application.

package tcp

import (
	"errors"
	"net/netip"
	"time"

	"github.com/momentics/socev/api"
	"github.com/momentics/socev/control"
	"github.com/momentics/socev/internal/registry"
	"github.com/momentics/socev/internal/timer"
	"golang.org/x/sys/unix"
)

// Client is one accepted connection. A *Client stays valid as a value after
// its connection is gone, but every operation then fails with
// api.ErrStaleEndpoint.
type Client struct {
	ctx    *Context
	ref    registry.Ref
	fd     int
	timer  *timer.Timer
	remote netip.AddrPort

	writePending bool
	timerArmed   bool
	timerEnabled bool
	timerSeq     uint64
	closing      bool
}

var _ api.Endpoint = (*Client)(nil)

// ID is unique for the lifetime of the Context.
func (cl *Client) ID() uint64 { return cl.ref.ID() }

// FD is the socket descriptor.
func (cl *Client) FD() int { return cl.fd }

// TimerFD is the timer descriptor.
func (cl *Client) TimerFD() int { return cl.timer.FD() }

// RemoteAddr is the peer address.
func (cl *Client) RemoteAddr() netip.AddrPort { return cl.remote }

// IP is the peer address in text form.
func (cl *Client) IP() string { return cl.remote.Addr().String() }

// Port is the peer port in host byte order.
func (cl *Client) Port() uint16 { return cl.remote.Port() }

// WritePending reports whether RequestWritable is waiting for EventWritable.
func (cl *Client) WritePending() bool { return cl.writePending }

// TimerArmed reports whether the timer is set and has not fired yet.
func (cl *Client) TimerArmed() bool { return cl.timerArmed }

func (cl *Client) check() error {
	if cl.ctx.closed || cl.closing || !cl.ctx.reg.Live(cl.ref) {
		return api.ErrStaleEndpoint
	}
	return nil
}

// RequestWritable asks for one EventWritable. Calling it again before the
// event is delivered has no further effect.
func (cl *Client) RequestWritable() error {
	if err := cl.check(); err != nil {
		return err
	}
	if cl.writePending {
		return nil
	}
	if err := cl.ctx.mux.Modify(cl.fd, api.InterestBoth); err != nil {
		return err
	}
	cl.writePending = true
	return nil
}

// Write performs a single write. A full socket buffer yields (0, nil);
// partial writes are the caller's business.
func (cl *Client) Write(p []byte) (int, error) {
	if err := cl.check(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Write(cl.fd, p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		cl.ctx.opts.metrics.Inc(control.MetricIoFailures)
		return 0, api.NewError(api.ErrCodeIoFailure, "write").
			WithContext("client", cl.ID()).
			WithCause(err)
	}
	cl.ctx.opts.metrics.Add(control.MetricWrittenBytes, int64(n))
	return n, nil
}

// SetTimer arms the one-shot timer to fire after d, replacing any pending
// expiration. A non-positive d disarms it.
func (cl *Client) SetTimer(d time.Duration) error {
	if err := cl.check(); err != nil {
		return err
	}
	cl.timerSeq++
	if err := cl.timer.Arm(d); err != nil {
		return api.NewError(api.ErrCodeIoFailure, "arm timer").
			WithContext("client", cl.ID()).
			WithCause(err)
	}
	cl.timerArmed = d > 0
	return nil
}

// EnableTimer turns delivery of EventTimerExpired on or off without touching
// the timer itself. An expiration that happens while disabled is delivered
// once re-enabled. Timers start enabled.
func (cl *Client) EnableTimer(enabled bool) error {
	if err := cl.check(); err != nil {
		return err
	}
	if cl.timerEnabled == enabled {
		return nil
	}
	interest := api.InterestNone
	if enabled {
		interest = api.InterestRead
	}
	if err := cl.ctx.mux.Modify(cl.timer.FD(), interest); err != nil {
		return err
	}
	cl.timerEnabled = enabled
	return nil
}

// Close disconnects the client. EventDisconnected is delivered before the
// handles are released. Closing an already closed client returns
// api.ErrStaleEndpoint, except from within its own EventDisconnected.
func (cl *Client) Close() error {
	if cl.closing && cl.ctx.reg.Live(cl.ref) {
		return nil
	}
	if err := cl.check(); err != nil {
		return err
	}
	cl.ctx.disconnect(cl, "closed locally")
	return nil
}

func (cl *Client) String() string {
	return "tcp.Client(" + cl.remote.String() + ")"
}
