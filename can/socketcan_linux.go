//go:build linux

// File: can/socketcan_linux.go
// Author: momentics <momentics@gmail.com>
//
// Raw SocketCAN bus sockets.

package can

import (
	"net"

	"github.com/momentics/socev/api"
	"golang.org/x/sys/unix"
)

// SocketCAN opens CAN_RAW sockets bound to a network interface.
type SocketCAN struct{}

func defaultOpener() BusOpener { return SocketCAN{} }

// Open creates a non-blocking raw socket bound to the interface name.
func (SocketCAN) Open(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return -1, api.NewError(api.ErrCodeNotFound, "can: no such interface").
			WithContext("bus", name).
			WithCause(err)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return -1, api.NewError(api.ErrCodeResourceExhausted, "can: socket").
			WithContext("bus", name).
			WithCause(err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		_ = unix.Close(fd)
		return -1, api.NewError(api.ErrCodeIoFailure, "can: bind").
			WithContext("bus", name).
			WithCause(err)
	}
	return fd, nil
}

// SetFilters replaces the kernel filter list of fd. An empty list makes the
// socket receive nothing.
func (SocketCAN) SetFilters(fd int, filters []RawFilter) error {
	list := make([]unix.CanFilter, len(filters))
	for i, f := range filters {
		list[i] = unix.CanFilter{Id: f.ID, Mask: f.Mask}
	}
	if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, list); err != nil {
		return api.NewError(api.ErrCodeIoFailure, "can: set filters").
			WithContext("count", len(list)).
			WithCause(err)
	}
	return nil
}
