// File: api/events.go
// Package api defines the dispatch contract shared by the TCP and CAN reactors.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// Event enumerates what happened to an endpoint.
type Event uint8

const (
	// EventConnected is emitted once after a TCP client was accepted.
	EventConnected Event = iota
	// EventDisconnected is emitted once before a TCP client is released.
	EventDisconnected
	// EventWritable is emitted once per RequestWritable call, when the socket can take data.
	EventWritable
	// EventDataReceived carries a received byte buffer or CAN frame.
	EventDataReceived
	// EventTimerExpired is emitted once per timer expiration.
	EventTimerExpired
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventWritable:
		return "writable"
	case EventDataReceived:
		return "data_received"
	case EventTimerExpired:
		return "timer_expired"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Endpoint is a live interaction point: a TCP client or a CAN filter entry.
type Endpoint interface {
	// ID is unique among all endpoints a context ever created, including
	// endpoints whose registry slot has since been reused.
	ID() uint64
}

// Callback receives every event of a context.
//
// payload is owned by the reactor and reused by the next receive; copy it if
// it must outlive the call. The callback may call back into the reactor
// (request writable, arm timers, write) but must not close the context.
type Callback func(ev Event, ep Endpoint, payload []byte)
