//go:build !linux

// File: can/context_other.go
// Author: momentics <momentics@gmail.com>
//
// SocketCAN exists only on Linux.

package can

import (
	"context"
	"time"

	"github.com/momentics/socev/api"
	"github.com/momentics/socev/control"
)

type unsupportedOpener struct{}

func (unsupportedOpener) Open(string) (int, error) { return -1, api.ErrNotSupported }
func (unsupportedOpener) SetFilters(int, []RawFilter) error { return api.ErrNotSupported }

func defaultOpener() BusOpener { return unsupportedOpener{} }

// Context is only implemented on Linux.
type Context struct{}

// Filter is only implemented on Linux.
type Filter struct{}

// New fails with api.ErrNotSupported.
func New(cfg Config, opts ...Option) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := resolveOptions(opts); err != nil {
		return nil, err
	}
	return nil, api.ErrNotSupported
}

func (c *Context) Filters() []*Filter { return nil }
func (c *Context) Filter(uint64) (*Filter, bool) { return nil, false }
func (c *Context) Metrics() *control.MetricsRegistry { return nil }
func (c *Context) DumpState(...string) map[string]any { return nil }
func (c *Context) Service(int) (int, error) { return 0, api.ErrNotSupported }
func (c *Context) Run(context.Context, int) error { return api.ErrNotSupported }
func (c *Context) Close() error { return nil }
func (f *Filter) ID() uint64 { return 0 }
func (f *Filter) Index() int { return -1 }
func (f *Filter) Bus() string { return "" }
func (f *Filter) CANID() uint32 { return 0 }
func (f *Filter) Mask() uint32 { return 0 }
func (f *Filter) RecvTimeout() time.Duration { return 0 }
func (f *Filter) SendTimeout() time.Duration { return 0 }
func (f *Filter) LastExpired() TimerKind { return TimerNone }
func (f *Filter) Matches(Frame) bool { return false }
func (f *Filter) StartRecvTimer() error { return api.ErrNotSupported }
func (f *Filter) StopRecvTimer() error { return api.ErrNotSupported }
func (f *Filter) StartSendTimer() error { return api.ErrNotSupported }
func (f *Filter) StopSendTimer() error { return api.ErrNotSupported }
func (f *Filter) Send(Frame) error { return api.ErrNotSupported }
