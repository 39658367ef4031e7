//go:build linux

// Author: momentics <momentics@gmail.com>

package fake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/momentics/socev/can"
	"golang.org/x/sys/unix"
)

var _ can.BusOpener = (*Bus)(nil)

// Bus is a can.BusOpener standing in for SocketCAN. Each opened bus is one
// end of a SOCK_SEQPACKET socket pair, so every write on the peer end
// arrives as a single datagram, like a CAN frame. Kernel filters are only
// recorded; the reactor still sees every injected frame.
type Bus struct {
	mu      sync.Mutex
	peers   map[string]int
	names   map[int]string
	filters map[string][]can.RawFilter
	calls   map[string]int
	// FailOpen makes Open fail for the named bus.
	FailOpen map[string]error
}

// NewBus creates an empty fake bus set.
func NewBus() *Bus {
	return &Bus{
		peers:    make(map[string]int),
		names:    make(map[int]string),
		filters:  make(map[string][]can.RawFilter),
		calls:    make(map[string]int),
		FailOpen: make(map[string]error),
	}
}

// Open creates a socket pair for name and returns the reactor's end.
func (b *Bus) Open(name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailOpen[name]; err != nil {
		return -1, err
	}
	if _, ok := b.peers[name]; ok {
		return -1, fmt.Errorf("fake: bus %q already open", name)
	}
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	b.peers[name] = fds[1]
	b.names[fds[0]] = name
	return fds[0], nil
}

// SetFilters records the filter list installed on fd.
func (b *Bus) SetFilters(fd int, filters []can.RawFilter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.names[fd]
	if !ok {
		return unix.EBADF
	}
	b.filters[name] = append([]can.RawFilter(nil), filters...)
	b.calls[name]++
	return nil
}

// Filters returns the last filter list installed for name.
func (b *Bus) Filters(name string) []can.RawFilter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]can.RawFilter(nil), b.filters[name]...)
}

// SetFilterCalls is the number of SetFilters calls for name.
func (b *Bus) SetFilterCalls(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *Bus) peer(name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fd, ok := b.peers[name]
	if !ok {
		return -1, fmt.Errorf("fake: bus %q not open", name)
	}
	return fd, nil
}

// Inject delivers one raw frame to the reactor side of name.
func (b *Bus) Inject(name string, frame []byte) error {
	fd, err := b.peer(name)
	if err != nil {
		return err
	}
	_, err = unix.Write(fd, frame)
	return err
}

// Sent drains and returns the frames the reactor wrote to name.
func (b *Bus) Sent(name string) ([][]byte, error) {
	fd, err := b.peer(name)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(fd, buf)
		if errors.Is(err, unix.EAGAIN) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, append([]byte(nil), buf[:n]...))
	}
}

// Close closes the peer ends. The reactor closes its own ends.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for name, fd := range b.peers {
		if err := unix.Close(fd); err != nil {
			errs = append(errs, err)
		}
		delete(b.peers, name)
	}
	return errors.Join(errs...)
}
