//go:build unix

package registry

import "golang.org/x/sys/unix"

// Socket adapts a raw socket descriptor to Handle.
type Socket int

func (s Socket) FD() int { return int(s) }

func (s Socket) Close() error { return unix.Close(int(s)) }
