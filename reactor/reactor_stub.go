//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/socev/api"

// Epoll is unavailable on this platform.
type Epoll struct{}

// New returns an error for unsupported platforms.
func New(capacity int) (*Epoll, error) {
	return nil, api.ErrNotSupported
}

func (*Epoll) Register(int, api.Interest) error { return api.ErrNotSupported }
func (*Epoll) Modify(int, api.Interest) error { return api.ErrNotSupported }
func (*Epoll) Unregister(int) error { return api.ErrNotSupported }
func (*Epoll) Interest(int) (api.Interest, bool) { return 0, false }
func (*Epoll) Wait(int) ([]api.Ready, error) { return nil, api.ErrNotSupported }
func (*Epoll) Len() int { return 0 }
func (*Epoll) Cap() int { return 0 }
func (*Epoll) Close() error { return nil }
