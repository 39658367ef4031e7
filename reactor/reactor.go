// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness multiplexer interface.

package reactor

import "github.com/momentics/socev/api"

// EventReactor defines the multiplexer operations the contexts rely on.
type EventReactor interface {
	api.Multiplexer

	// Wait blocks until at least one handle is ready or timeoutMs elapses.
	// timeoutMs < 0 blocks indefinitely, 0 returns immediately.
	// The returned slice is only valid until the next Wait.
	Wait(timeoutMs int) ([]api.Ready, error)

	// Interest reports the interest fd is registered with.
	Interest(fd int) (api.Interest, bool)

	// Len is the number of registered handles.
	Len() int

	// Cap is the maximum number of registered handles.
	Cap() int

	// Close releases the OS handle. Calling Close again is a no-op.
	Close() error
}

var _ EventReactor = (*Epoll)(nil)
