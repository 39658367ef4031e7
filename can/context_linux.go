//go:build linux

// File: can/context_linux.go
// Author: momentics <momentics@gmail.com>
//
// Bus sockets, filter endpoints and event dispatch for the CAN reactor.

package can

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// RunPollInterval is the wait timeout Run uses when given a negative one.
const RunPollInterval = 100

// maxFramesPerWake bounds the frames read from one bus per service pass so a
// busy bus cannot starve timers.
const maxFramesPerWake = 64

type bus struct {
	name    string
	fd      int
	filters []*Filter
}

// match returns the first configured filter accepting raw. CAN_RAW hands a
// frame to the socket once even when several installed filters match it, so
// overlapping filters share one delivery.
func (b *bus) match(raw uint32) *Filter {
	for _, f := range b.filters {
		if matches(raw, f.canID, f.mask) {
			return f
		}
	}
	return nil
}

// Context is a CAN reactor. All methods must be called from the goroutine
// that calls Service.
type Context struct {
	cfg     Config
	opts    *options
	log     *logx.Logger
	mux     reactor.EventReactor
	reg     *registry.Registry[*Filter]
	buses   []*bus
	busByFD map[int]*bus
	filters []*Filter
	buf     []byte
	probes  *control.DebugProbes

	inCallback int
	closed     bool
}

// New opens every bus, installs its filters and creates the filter timers.
// On error everything acquired so far is released.
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

	mux, err := reactor.New(len(cfg.Buses) + 2*len(cfg.Filters))
	if err != nil {
		return nil, err
	}
	undo.Push(mux.Close)

	reg, err := registry.New[*Filter](mux, max(1, len(cfg.Filters)))
	if err != nil {
		return nil, err
	}
	undo.Push(reg.Close)

	c := &Context{
		cfg:     cfg,
		opts:    o,
		log:     o.logger.Clone().Str("component", "can").Logger(),
		mux:     mux,
		reg:     reg,
		busByFD: make(map[int]*bus, len(cfg.Buses)),
		buf:     make([]byte, FrameSize+1),
		probes:  control.NewDebugProbes(),
	}

	byName := make(map[string]*bus, len(cfg.Buses))
	for _, bc := range cfg.Buses {
		fd, err := o.opener.Open(bc.Name)
		if err != nil {
			return nil, err
		}
		undo.Push(func() error { return unix.Close(fd) })
		if err := mux.Register(fd, api.InterestRead); err != nil {
			return nil, err
		}
		undo.Push(func() error { return mux.Unregister(fd) })

		b := &bus{name: bc.Name, fd: fd}
		c.buses = append(c.buses, b)
		c.busByFD[fd] = b
		byName[bc.Name] = b
	}

	for i, fc := range cfg.Filters {
		b := byName[fc.BusName]
		f := &Filter{
			ctx:         c,
			bus:         b,
			index:       i,
			canID:       fc.ID,
			mask:        fc.Mask,
			recvTimeout: fc.RecvTimeout(),
			sendTimeout: fc.SendTimeout(),
		}
		ref, err := reg.Insert(f)
		if err != nil {
			return nil, err
		}
		f.ref = ref
		if f.recvTimeout > 0 {
			if f.recvTimer, err = c.attachTimer(ref, registry.RoleRecvTimer); err != nil {
				return nil, err
			}
		}
		if f.sendTimeout > 0 {
			if f.sendTimer, err = c.attachTimer(ref, registry.RoleSendTimer); err != nil {
				return nil, err
			}
		}
		b.filters = append(b.filters, f)
		c.filters = append(c.filters, f)
	}

	// one filter list per bus, installed in a single call
	for _, b := range c.buses {
		list := make([]RawFilter, 0, len(b.filters))
		for _, f := range b.filters {
			list = append(list, RawFilter{ID: f.canID, Mask: f.mask})
		}
		if err := o.opener.SetFilters(b.fd, list); err != nil {
			return nil, fmt.Errorf("can: bus %s: %w", b.name, err)
		}
	}

	c.registerProbes()
	undo.Disarm()

	c.log.Info().
		Int("buses", len(c.buses)).
		Int("filters", len(c.filters)).
		Log("started")
	return c, nil
}

func (c *Context) attachTimer(ref registry.Ref, role registry.Role) (*timer.Timer, error) {
	tm, err := timer.New()
	if err != nil {
		return nil, api.NewError(api.ErrCodeResourceExhausted, "can: timer").WithCause(err)
	}
	if err := c.reg.Attach(ref, tm, role, api.InterestRead); err != nil {
		return nil, err
	}
	return tm, nil
}

func (c *Context) registerProbes() {
	c.probes.RegisterProbe("can.buses", func() any {
		names := make([]string, len(c.buses))
		for i, b := range c.buses {
			names[i] = b.name
		}
		return names
	})
	c.probes.RegisterProbe("can.filters", func() any { return c.reg.Len() })
	c.probes.RegisterProbe("can.handles", func() any { return c.mux.Len() })
	c.probes.RegisterProbe("can.metrics", func() any { return c.opts.metrics.GetSnapshot() })
	control.RegisterPlatformProbes(c.probes)
}

// Filters returns the filter endpoints in configuration order.
func (c *Context) Filters() []*Filter {
	if c.closed {
		return nil
	}
	return append([]*Filter(nil), c.filters...)
}

// Filter looks a filter up by its ID.
func (c *Context) Filter(id uint64) (*Filter, bool) {
	if c.closed {
		return nil, false
	}
	f, err := c.reg.Get(registry.RefFromID(id))
	if err != nil {
		return nil, false
	}
	return f, true
}

// Metrics returns the counter registry.
func (c *Context) Metrics() *control.MetricsRegistry { return c.opts.metrics }

// DumpState evaluates the debug probes, optionally only those whose names
// start with one of prefixes.
func (c *Context) DumpState(prefixes ...string) map[string]any {
	return c.probes.DumpState(prefixes...)
}

// Service waits up to timeoutMs milliseconds (-1 blocks, 0 polls) and
// dispatches whatever became ready, in wait order.
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

	for _, ev := range ready {
		if b, ok := c.busByFD[ev.FD]; ok {
			c.readBus(b)
			continue
		}
		_, role, f, ok := c.reg.Classify(ev.FD)
		if !ok {
			continue
		}
		switch role {
		case registry.RoleRecvTimer:
			c.handleTimer(f, f.recvTimer, TimerRecv)
		case registry.RoleSendTimer:
			c.handleTimer(f, f.sendTimer, TimerSend)
		}
	}
	return len(ready), nil
}

// Run calls Service until ctx is done or Service fails with anything other
// than an interrupted wait. With WithCPU the loop runs pinned to that CPU.
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

func (c *Context) readBus(b *bus) {
	for i := 0; i < maxFramesPerWake; i++ {
		n, err := unix.Read(b.fd, c.buf)
		switch {
		case err == nil:
		case errors.Is(err, unix.EAGAIN):
			return
		case errors.Is(err, unix.EINTR):
			continue
		default:
			c.opts.metrics.Inc(control.MetricIoFailures)
			if c.opts.limiter.Allow("read:" + b.name) {
				c.log.Warning().Str("bus", b.name).Err(err).Log("bus read failed")
			}
			return
		}
		if n != FrameSize {
			c.opts.metrics.Inc(control.MetricFramesDropped)
			if c.opts.limiter.Allow("size:" + b.name) {
				c.log.Warning().Str("bus", b.name).Int("size", n).Log("dropping frame of unexpected size")
			}
			continue
		}
		frame := c.buf[:FrameSize]
		f := b.match(nativeID(frame))
		if f == nil {
			c.opts.metrics.Inc(control.MetricFramesDropped)
			continue
		}
		c.opts.metrics.Inc(control.MetricFramesReceived)
		if f.recvTimer != nil {
			if err := f.recvTimer.Arm(f.recvTimeout); err != nil {
				c.log.Warning().Err(err).Uint64("filter", f.ID()).Log("arm receive timer failed")
			}
		}
		c.dispatch(api.EventDataReceived, f, frame)
	}
}

func (c *Context) handleTimer(f *Filter, tm *timer.Timer, kind TimerKind) {
	if tm == nil {
		return
	}
	n, err := tm.Consume()
	if err != nil {
		c.opts.metrics.Inc(control.MetricIoFailures)
		if c.opts.limiter.Allow("timer") {
			c.log.Warning().Err(err).Uint64("filter", f.ID()).Log("timer read failed")
		}
		return
	}
	if n == 0 {
		return
	}
	_ = tm.Disarm()
	f.lastExpired = kind
	c.opts.metrics.Inc(control.MetricTimerExpired)
	c.log.Debug().
		Uint64("filter", f.ID()).
		Str("bus", f.bus.name).
		Str("timer", kind.String()).
		Log("timer expired")
	c.dispatch(api.EventTimerExpired, f, nil)
}

func (c *Context) dispatch(ev api.Event, f *Filter, payload []byte) {
	cb := c.cfg.Callback
	if cb == nil {
		return
	}
	c.inCallback++
	defer func() { c.inCallback-- }()
	cb(ev, f, payload)
}

// Close releases the filter timers, then the bus sockets, then the
// multiplexer. Closing twice is a no-op; closing from inside a callback
// fails with api.ErrInCallback.
func (c *Context) Close() error {
	if c.inCallback > 0 {
		return api.ErrInCallback
	}
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.reg.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, b := range c.buses {
		if err := c.mux.Unregister(b.fd); err != nil {
			errs = append(errs, err)
		}
		if err := unix.Close(b.fd); err != nil {
			errs = append(errs, fmt.Errorf("close bus %s: %w", b.name, err))
		}
		delete(c.busByFD, b.fd)
		b.fd = -1
	}
	if err := c.mux.Close(); err != nil {
		errs = append(errs, err)
	}
	c.buf = nil
	c.log.Info().Log("closed")
	return errors.Join(errs...)
}

func arm(tm *timer.Timer, d time.Duration) error {
	if tm == nil {
		return nil
	}
	return tm.Arm(d)
}

func disarm(tm *timer.Timer) error {
	if tm == nil {
		return nil
	}
	return tm.Disarm()
}
