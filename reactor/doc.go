// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer used by the TCP and CAN
// contexts: an epoll instance with a fixed registration capacity and an event
// buffer sized for the worst case, so Wait never drops readiness.
package reactor
