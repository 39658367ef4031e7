// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake collaborators for testing the reactors: an event recorder and an
// in-memory CAN bus.

package fake

import (
	"sync"

	"github.com/momentics/socev/api"
)

// Event is one recorded callback invocation.
type Event struct {
	Kind     api.Event
	Endpoint api.Endpoint
	ID       uint64
	Payload  []byte
}

// Recorder is an api.Callback sink that keeps every event, with payloads
// copied.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Hook, if set, runs after each event is recorded and may call back into
	// the reactor.
	Hook func(ev api.Event, ep api.Endpoint, payload []byte)
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Callback returns the function to put in a reactor config.
func (r *Recorder) Callback() api.Callback {
	return func(ev api.Event, ep api.Endpoint, payload []byte) {
		var cp []byte
		if payload != nil {
			cp = append([]byte(nil), payload...)
		}
		r.mu.Lock()
		r.events = append(r.events, Event{Kind: ev, Endpoint: ep, ID: ep.ID(), Payload: cp})
		hook := r.Hook
		r.mu.Unlock()
		if hook != nil {
			hook(ev, ep, payload)
		}
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the recorded event kinds in order.
func (r *Recorder) Kinds() []api.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.Event, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind api.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Data concatenates the payloads of every EventDataReceived for id.
func (r *Recorder) Data(id uint64) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, e := range r.events {
		if e.Kind == api.EventDataReceived && e.ID == id {
			out = append(out, e.Payload...)
		}
	}
	return out
}

// Reset forgets all events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
