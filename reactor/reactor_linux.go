//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based readiness multiplexer and factory.

package reactor

import (
	"fmt"

	"github.com/momentics/socev/api"
	"golang.org/x/sys/unix"
)

// Epoll is a level-triggered epoll instance with a fixed handle capacity.
type Epoll struct {
	epfd       int
	capacity   int
	registered map[int]api.Interest
	events     []unix.EpollEvent // one slot per registrable handle
	ready      []api.Ready
}

// New constructs an epoll instance able to hold capacity handles.
func New(capacity int) (*Epoll, error) {
	if capacity <= 0 {
		return nil, api.ConfigError("reactor: capacity must be positive, got %d", capacity)
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.NewError(api.ErrCodeResourceExhausted, "epoll create").WithCause(err)
	}
	return &Epoll{
		epfd:       epfd,
		capacity:   capacity,
		registered: make(map[int]api.Interest, capacity),
		events:     make([]unix.EpollEvent, capacity),
		ready:      make([]api.Ready, 0, capacity),
	}, nil
}

// Register adds fd to the watch list with the given interest. An empty
// interest is valid and keeps fd registered without reporting it.
func (r *Epoll) Register(fd int, interest api.Interest) error {
	if r.epfd < 0 {
		return api.ErrClosed
	}
	if _, ok := r.registered[fd]; ok {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, api.ErrAlreadyExists)
	}
	if len(r.registered) >= r.capacity {
		return api.NewError(api.ErrCodeCapacityExceeded, "epoll ctl add").
			WithContext("fd", fd).
			WithContext("capacity", r.capacity)
	}
	ev := unix.EpollEvent{Events: interestToEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	r.registered[fd] = interest
	return nil
}

// Modify replaces the interest mask of a registered fd.
func (r *Epoll) Modify(fd int, interest api.Interest) error {
	if r.epfd < 0 {
		return api.ErrClosed
	}
	if _, ok := r.registered[fd]; !ok {
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, api.ErrNotFound)
	}
	ev := unix.EpollEvent{Events: interestToEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, err)
	}
	r.registered[fd] = interest
	return nil
}

// Unregister removes fd from the watch list. It must be called before fd is
// closed.
func (r *Epoll) Unregister(fd int) error {
	if r.epfd < 0 {
		return api.ErrClosed
	}
	if _, ok := r.registered[fd]; !ok {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, api.ErrNotFound)
	}
	delete(r.registered, fd)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Interest returns the current interest of fd.
func (r *Epoll) Interest(fd int) (api.Interest, bool) {
	in, ok := r.registered[fd]
	return in, ok
}

// Wait blocks for readiness and returns the ready handles in kernel order.
func (r *Epoll) Wait(timeoutMs int) ([]api.Ready, error) {
	if r.epfd < 0 {
		return nil, api.ErrClosed
	}
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, api.ErrInterrupted
		}
		return nil, api.NewError(api.ErrCodeIoFailure, "epoll wait").WithCause(err)
	}
	r.ready = r.ready[:0]
	for i := 0; i < n; i++ {
		r.ready = append(r.ready, api.Ready{
			FD:     int(r.events[i].Fd),
			Events: epollToInterest(r.events[i].Events),
		})
	}
	return r.ready, nil
}

// Len is the number of registered handles.
func (r *Epoll) Len() int { return len(r.registered) }

// Cap is the registration capacity.
func (r *Epoll) Cap() int { return r.capacity }

// Close closes the epoll instance.
func (r *Epoll) Close() error {
	if r.epfd < 0 {
		return nil
	}
	epfd := r.epfd
	r.epfd = -1
	r.registered = map[int]api.Interest{}
	return unix.Close(epfd)
}

func interestToEpoll(in api.Interest) uint32 {
	var ev uint32
	if in&api.InterestRead != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if in&api.InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func epollToInterest(ev uint32) api.Interest {
	var in api.Interest
	if ev&unix.EPOLLIN != 0 {
		in |= api.InterestRead
	}
	if ev&unix.EPOLLOUT != 0 {
		in |= api.InterestWrite
	}
	if ev&unix.EPOLLERR != 0 {
		in |= api.InterestError
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		in |= api.InterestHangup
	}
	return in
}
