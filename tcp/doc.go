// Package tcp is a single-threaded TCP server reactor.
//
// A Context owns a listening socket, an epoll multiplexer and a fixed number
// of client slots. Each accepted Client has a socket and a one-shot timer.
// The application drives everything from one goroutine by calling
// Context.Service (or Context.Run) and reacts to events delivered through
// the configured api.Callback:
//
//	EventConnected     a client was accepted
//	EventWritable      the socket can take more data after RequestWritable
//	EventTimerExpired  the client timer fired
//	EventDataReceived  bytes arrived; the payload is only valid during the call
//	EventDisconnected  the peer went away or Close was called; the last event
//
// For a single client the order within one service pass is writable, then
// timer, then read.
package tcp
