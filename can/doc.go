// Package can is a single-threaded SocketCAN reactor.
//
// A Context opens one raw socket per configured bus and installs the
// identifier/mask filters of that bus in the kernel with a single call. Each
// configured filter is an endpoint with optional receive and send timeout
// timers. Received frames are handed to the callback of the first filter on
// the bus that matches them, after that filter's receive timer was re-armed,
// so a silent identifier shows up as EventTimerExpired.
//
// Bus sockets are always connected: there is no EventConnected or
// EventDisconnected here.
package can
