//go:build linux

// File: tcp/context_linux.go
// Author: momentics <momentics@gmail.com>
//
// Listening socket, accept loop and event dispatch for the TCP reactor.

package tcp

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/momentics/socev/api"
	"github.com/momentics/socev/control"
	"github.com/momentics/socev/internal/affinity"
	"github.com/momentics/socev/internal/logx"
	"github.com/momentics/socev/internal/registry"
	"github.com/momentics/socev/internal/timer"
	"github.com/momentics/socev/internal/unwind"
	"github.com/momentics/socev/reactor"
	"golang.org/x/sys/unix"
)

// RunPollInterval is the wait timeout Run uses when given a negative one, so
// cancellation is noticed.
const RunPollInterval = 100

// Context is a TCP server reactor. All methods must be called from the
// goroutine that calls Service.
type Context struct {
	cfg      Config
	opts     *options
	log      *logx.Logger
	mux      reactor.EventReactor
	reg      *registry.Registry[*Client]
	listenFD int
	addr     netip.AddrPort
	buf      []byte
	probes   *control.DebugProbes

	// per-pass scratch
	pending []pendingClient
	index   map[uint32]int

	inCallback int
	closed     bool
}

type pendingClient struct {
	ref      registry.Ref
	client   *Client
	events   api.Interest
	timerDue bool
}

// New creates the listener, the multiplexer and the client table. On error
// everything acquired so far is released.
func New(cfg Config, opts ...Option) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	var undo unwind.Stack
	defer func() { _ = undo.Run() }()

	capacity := int(cfg.MaxClientCount)
	mux, err := reactor.New(2*capacity + 1)
	if err != nil {
		return nil, err
	}
	undo.Push(mux.Close)

	reg, err := registry.New[*Client](mux, capacity)
	if err != nil {
		return nil, err
	}

	fd, addr, err := listen(o.bind, cfg.Port, capacity)
	if err != nil {
		return nil, err
	}
	undo.Push(func() error { return unix.Close(fd) })

	if err := mux.Register(fd, api.InterestRead); err != nil {
		return nil, err
	}

	c := &Context{
		cfg:      cfg,
		opts:     o,
		log:      o.logger.Clone().Str("component", "tcp").Logger(),
		mux:      mux,
		reg:      reg,
		listenFD: fd,
		addr:     addr,
		buf:      make([]byte, o.recvBufSize),
		probes:   control.NewDebugProbes(),
		pending:  make([]pendingClient, 0, capacity),
		index:    make(map[uint32]int, capacity),
	}
	c.registerProbes()
	undo.Disarm()

	c.log.Info().
		Str("addr", addr.String()).
		Int("max_clients", capacity).
		Log("listening")
	return c, nil
}

func listen(bind netip.Addr, port uint16, backlog int) (int, netip.AddrPort, error) {
	family := unix.AF_INET
	if bind.Is6() && !bind.Is4In6() {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, netip.AddrPort{}, ioError("socket", err)
	}
	fail := func(op string, err error) (int, netip.AddrPort, error) {
		_ = unix.Close(fd)
		return -1, netip.AddrPort{}, ioError(op, err).WithContext("port", port)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	var sa unix.Sockaddr
	if family == unix.AF_INET6 {
		sa = &unix.SockaddrInet6{Port: int(port), Addr: bind.As16()}
	} else {
		sa = &unix.SockaddrInet4{Port: int(port), Addr: bind.Unmap().As4()}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}
	local, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	return fd, addrPortOf(local), nil
}

func ioError(op string, err error) *api.Error {
	return api.NewError(api.ErrCodeIoFailure, op).WithCause(err)
}

func addrPortOf(sa unix.Sockaddr) netip.AddrPort {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr).Unmap(), uint16(a.Port))
	default:
		return netip.AddrPort{}
	}
}

// Addr is the bound local address, useful when Port was zero.
func (c *Context) Addr() netip.AddrPort { return c.addr }

// Len is the number of connected clients.
func (c *Context) Len() int { return c.reg.Len() }

// Cap is MaxClientCount.
func (c *Context) Cap() int { return c.reg.Cap() }

// Metrics returns the counter registry.
func (c *Context) Metrics() *control.MetricsRegistry { return c.opts.metrics }

// DumpState evaluates the debug probes, optionally only those whose names
// start with one of prefixes.
func (c *Context) DumpState(prefixes ...string) map[string]any {
	return c.probes.DumpState(prefixes...)
}

// Client looks a client up by its ID.
func (c *Context) Client(id uint64) (*Client, bool) {
	if c.closed {
		return nil, false
	}
	cl, err := c.reg.Get(registry.RefFromID(id))
	if err != nil {
		return nil, false
	}
	return cl, true
}

// Clients returns the connected clients in slot order.
func (c *Context) Clients() []*Client {
	if c.closed {
		return nil
	}
	out := make([]*Client, 0, c.reg.Len())
	c.reg.Each(func(_ registry.Ref, cl *Client) bool {
		out = append(out, cl)
		return true
	})
	return out
}

func (c *Context) registerProbes() {
	c.probes.RegisterProbe("tcp.addr", func() any { return c.addr.String() })
	c.probes.RegisterProbe("tcp.clients", func() any { return c.reg.Len() })
	c.probes.RegisterProbe("tcp.capacity", func() any { return c.reg.Cap() })
	c.probes.RegisterProbe("tcp.handles", func() any { return c.mux.Len() })
	c.probes.RegisterProbe("tcp.write_interest", func() any {
		n := 0
		c.reg.Each(func(_ registry.Ref, cl *Client) bool {
			if in, ok := c.mux.Interest(cl.fd); ok && in&api.InterestWrite != 0 {
				n++
			}
			return true
		})
		return n
	})
	c.probes.RegisterProbe("tcp.metrics", func() any { return c.opts.metrics.GetSnapshot() })
	control.RegisterPlatformProbes(c.probes)
}

// Service waits up to timeoutMs milliseconds (-1 blocks, 0 polls) and
// dispatches whatever became ready. It returns the number of ready handles.
// An interrupted wait returns api.ErrInterrupted and dispatches nothing.
func (c *Context) Service(timeoutMs int) (int, error) {
	if c.closed {
		return 0, api.ErrClosed
	}
	if c.inCallback > 0 {
		return 0, api.ErrInCallback
	}
	ready, err := c.mux.Wait(timeoutMs)
	if err != nil {
		if !errors.Is(err, api.ErrInterrupted) {
			c.log.Err().Err(err).Log("wait failed")
		}
		return 0, err
	}
	c.opts.metrics.Inc(control.MetricServiceCalls)

	// Group by client so each sees writable, timer, read in that order.
	// Classification happens before accepting, so a descriptor reused by
	// an accept in this pass is never mistaken for the client it replaced.
	c.pending = c.pending[:0]
	clear(c.index)
	listenerReady := false
	for _, ev := range ready {
		if ev.FD == c.listenFD {
			listenerReady = true
			continue
		}
		ref, role, cl, ok := c.reg.Classify(ev.FD)
		if !ok {
			continue
		}
		i, seen := c.index[ref.Slot]
		if !seen {
			i = len(c.pending)
			c.index[ref.Slot] = i
			c.pending = append(c.pending, pendingClient{ref: ref, client: cl})
		}
		switch role {
		case registry.RolePrimary:
			c.pending[i].events |= ev.Events
		case registry.RoleTimer:
			c.pending[i].timerDue = true
		}
	}

	if listenerReady {
		c.acceptAll()
	}

	for i := range c.pending {
		p := &c.pending[i]
		if p.events&api.InterestWrite != 0 && c.reg.Live(p.ref) {
			c.handleWritable(p.client)
		}
		if p.timerDue && c.reg.Live(p.ref) {
			c.handleTimer(p.client)
		}
		if p.events&(api.InterestRead|api.InterestHangup|api.InterestError) != 0 && c.reg.Live(p.ref) {
			c.handleRead(p.client)
		}
	}
	for i := range c.pending {
		c.pending[i] = pendingClient{}
	}
	return len(ready), nil
}

// Run calls Service until ctx is done or Service fails with anything other
// than an interrupted wait. A negative timeoutMs is replaced with
// RunPollInterval. With WithCPU the loop runs pinned to that CPU.
func (c *Context) Run(ctx context.Context, timeoutMs int) error {
	if timeoutMs < 0 {
		timeoutMs = RunPollInterval
	}
	if c.opts.cpu >= 0 {
		release, err := affinity.Pin(c.opts.cpu)
		if err != nil {
			return err
		}
		defer release()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if _, err := c.Service(timeoutMs); err != nil && !errors.Is(err, api.ErrInterrupted) {
			return err
		}
	}
}

func (c *Context) acceptAll() {
	for {
		nfd, sa, err := unix.Accept4(c.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == nil:
		case errors.Is(err, unix.EAGAIN):
			return
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
			continue
		default:
			c.opts.metrics.Inc(control.MetricIoFailures)
			if c.opts.limiter.Allow("accept") {
				c.log.Warning().Err(err).Log("accept failed")
			}
			return
		}

		if c.reg.Len() >= c.reg.Cap() {
			_ = unix.Close(nfd)
			c.opts.metrics.Inc(control.MetricRejected)
			if c.opts.limiter.Allow("capacity") {
				c.log.Warning().
					Str("remote", addrPortOf(sa).String()).
					Int("capacity", c.reg.Cap()).
					Log("client rejected, capacity reached")
			}
			continue
		}
		c.admit(nfd, addrPortOf(sa))
	}
}

func (c *Context) admit(fd int, remote netip.AddrPort) {
	tm, err := timer.New()
	if err != nil {
		_ = unix.Close(fd)
		c.opts.metrics.Inc(control.MetricIoFailures)
		if c.opts.limiter.Allow("timer") {
			c.log.Warning().Err(err).Log("client timer creation failed")
		}
		return
	}
	cl := &Client{ctx: c, fd: fd, timer: tm, remote: remote, timerEnabled: true}
	ref, err := c.reg.Insert(cl)
	if err != nil {
		_ = tm.Close()
		_ = unix.Close(fd)
		return
	}
	cl.ref = ref
	if err := c.reg.Attach(ref, registry.Socket(fd), registry.RolePrimary, api.InterestRead); err != nil {
		_ = tm.Close()
		_ = c.reg.Erase(ref)
		c.log.Warning().Err(err).Log("client registration failed")
		return
	}
	if err := c.reg.Attach(ref, tm, registry.RoleTimer, api.InterestRead); err != nil {
		_ = c.reg.Erase(ref)
		c.log.Warning().Err(err).Log("client timer registration failed")
		return
	}
	c.opts.metrics.Inc(control.MetricAccepted)
	c.log.Debug().
		Uint64("client", cl.ID()).
		Str("remote", remote.String()).
		Log("client connected")

	seq := cl.timerSeq
	c.dispatch(api.EventConnected, cl, nil)
	c.applyIdle(cl, seq)
}

// applyIdle arms the idle timeout unless the callback touched the timer.
func (c *Context) applyIdle(cl *Client, seq uint64) {
	if c.opts.idle <= 0 || cl.timerSeq != seq || !c.reg.Live(cl.ref) {
		return
	}
	if err := cl.timer.Arm(c.opts.idle); err == nil {
		cl.timerArmed = true
	}
}

func (c *Context) dispatch(ev api.Event, cl *Client, payload []byte) {
	cb := c.cfg.Callback
	if cb == nil {
		return
	}
	c.inCallback++
	defer func() { c.inCallback-- }()
	cb(ev, cl, payload)
}

func (c *Context) handleWritable(cl *Client) {
	if !cl.writePending {
		return
	}
	cl.writePending = false
	if err := c.mux.Modify(cl.fd, api.InterestRead); err != nil {
		c.log.Warning().Err(err).Uint64("client", cl.ID()).Log("clear write interest failed")
	}
	c.dispatch(api.EventWritable, cl, nil)
}

func (c *Context) handleTimer(cl *Client) {
	n, err := cl.timer.Consume()
	if err != nil {
		c.opts.metrics.Inc(control.MetricIoFailures)
		if c.opts.limiter.Allow("timer") {
			c.log.Warning().Err(err).Uint64("client", cl.ID()).Log("timer read failed")
		}
		return
	}
	if n == 0 {
		// re-armed or disarmed since the wait
		return
	}
	_ = cl.timer.Disarm()
	cl.timerArmed = false
	c.opts.metrics.Inc(control.MetricTimerExpired)
	c.dispatch(api.EventTimerExpired, cl, nil)
}

func (c *Context) handleRead(cl *Client) {
	n, err := unix.Read(cl.fd, c.buf)
	switch {
	case err == nil && n > 0:
		c.opts.metrics.Add(control.MetricReceivedBytes, int64(n))
		seq := cl.timerSeq
		c.dispatch(api.EventDataReceived, cl, c.buf[:n])
		c.applyIdle(cl, seq)
	case err == nil:
		c.disconnect(cl, "peer closed")
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
	case peerGone(err):
		c.disconnect(cl, err.Error())
	default:
		c.opts.metrics.Inc(control.MetricIoFailures)
		if c.opts.limiter.Allow("read") {
			c.log.Warning().Err(err).Uint64("client", cl.ID()).Log("read failed")
		}
	}
}

// peerGone reports read errors that mean the connection is unusable.
func peerGone(err error) bool {
	return errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, unix.EPIPE) ||
		errors.Is(err, unix.ETIMEDOUT) ||
		errors.Is(err, unix.ENOTCONN)
}

// disconnect delivers EventDisconnected once and releases the client.
func (c *Context) disconnect(cl *Client, reason string) {
	if cl.closing {
		return
	}
	cl.closing = true
	c.log.Debug().
		Uint64("client", cl.ID()).
		Str("reason", reason).
		Log("client disconnected")
	c.dispatch(api.EventDisconnected, cl, nil)
	c.release(cl)
}

func (c *Context) release(cl *Client) {
	c.opts.metrics.Inc(control.MetricDisconnected)
	if err := c.reg.Erase(cl.ref); err != nil {
		c.log.Warning().Err(err).Uint64("client", cl.ID()).Log("client release failed")
	}
}

// Close releases every client, the listener and the multiplexer. Clients
// get no EventDisconnected. Closing twice is a no-op; closing from inside a
// callback fails with api.ErrInCallback.
func (c *Context) Close() error {
	if c.inCallback > 0 {
		return api.ErrInCallback
	}
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	c.reg.Each(func(_ registry.Ref, cl *Client) bool {
		cl.closing = true
		return true
	})
	if err := c.reg.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.mux.Unregister(c.listenFD); err != nil {
		errs = append(errs, err)
	}
	if err := unix.Close(c.listenFD); err != nil {
		errs = append(errs, fmt.Errorf("close listener: %w", err))
	}
	c.listenFD = -1
	if err := c.mux.Close(); err != nil {
		errs = append(errs, err)
	}
	c.buf = nil
	c.log.Info().Str("addr", c.addr.String()).Log("closed")
	return errors.Join(errs...)
}

func (c *Context) String() string {
	return "tcp.Context(" + c.addr.String() + ", " + strconv.Itoa(c.reg.Len()) + " clients)"
}
