// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Readiness interest flags and the result of a multiplexer wait, shared by the
// reactor backends and the endpoint registry.

package api

import "strings"

// Interest is a set of readiness conditions.
type Interest uint32

const (
	InterestRead Interest = 1 << iota
	InterestWrite
	// InterestError and InterestHangup are only ever observed, never requested.
	InterestError
	InterestHangup

	InterestNone Interest = 0
	InterestBoth          = InterestRead | InterestWrite
)

func (i Interest) String() string {
	if i == InterestNone {
		return "none"
	}
	var parts []string
	if i&InterestRead != 0 {
		parts = append(parts, "read")
	}
	if i&InterestWrite != 0 {
		parts = append(parts, "write")
	}
	if i&InterestError != 0 {
		parts = append(parts, "error")
	}
	if i&InterestHangup != 0 {
		parts = append(parts, "hangup")
	}
	return strings.Join(parts, "|")
}

// Ready encapsulates one OS-level readiness notification.
type Ready struct {
	FD     int
	Events Interest
}

// Multiplexer is the registration surface of a readiness multiplexer.
type Multiplexer interface {
	Register(fd int, interest Interest) error
	Modify(fd int, interest Interest) error
	Unregister(fd int) error
}
