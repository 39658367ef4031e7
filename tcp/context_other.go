//go:build !linux

// File: tcp/context_other.go
// Author: momentics <momentics@gmail.com>
//
// The TCP reactor needs epoll and timerfd.

package tcp

import (
	"context"
	"net/netip"
	"time"

	"github.com/momentics/socev/api"
	"github.com/momentics/socev/control"
)

// Context is only implemented on Linux.
type Context struct{}

// Client is only implemented on Linux.
type Client struct{}

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

func (c *Context) Addr() netip.AddrPort { return netip.AddrPort{} }
func (c *Context) Len() int { return 0 }
func (c *Context) Cap() int { return 0 }
func (c *Context) Metrics() *control.MetricsRegistry { return nil }
func (c *Context) DumpState(...string) map[string]any { return nil }
func (c *Context) Client(uint64) (*Client, bool) { return nil, false }
func (c *Context) Clients() []*Client { return nil }
func (c *Context) Service(int) (int, error) { return 0, api.ErrNotSupported }
func (c *Context) Run(context.Context, int) error { return api.ErrNotSupported }
func (c *Context) Close() error { return nil }
func (cl *Client) ID() uint64 { return 0 }
func (cl *Client) FD() int { return -1 }
func (cl *Client) TimerFD() int { return -1 }
func (cl *Client) RemoteAddr() netip.AddrPort { return netip.AddrPort{} }
func (cl *Client) IP() string { return "" }
func (cl *Client) Port() uint16 { return 0 }
func (cl *Client) WritePending() bool { return false }
func (cl *Client) TimerArmed() bool { return false }
func (cl *Client) RequestWritable() error { return api.ErrNotSupported }
func (cl *Client) Write([]byte) (int, error) { return 0, api.ErrNotSupported }
func (cl *Client) SetTimer(time.Duration) error { return api.ErrNotSupported }
func (cl *Client) EnableTimer(bool) error { return api.ErrNotSupported }
func (cl *Client) Close() error { return api.ErrNotSupported }
