// File: tcp/options.go
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"net/netip"
	"time"

	"github.com/momentics/socev/api"
	"github.com/momentics/socev/control"
	"github.com/momentics/socev/internal/logx"
)

// DefaultReceiveBufferSize is the size of the shared read buffer.
const DefaultReceiveBufferSize = 64 << 10

type options struct {
	cpu         int
	logger      *logx.Logger
	loggerSet   bool
	limiter     *logx.Limiter
	metrics     *control.MetricsRegistry
	recvBufSize int
	bind        netip.Addr
	idle        time.Duration
}

// Option configures a Context.
type Option interface {
	applyTCP(*options) error
}

type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) applyTCP(opts *options) error {
	return o.applyFunc(opts)
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *logx.Logger) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = l
		opts.loggerSet = true
		return nil
	}}
}

// WithLogLimiter replaces the limiter used for repetitive warnings.
func WithLogLimiter(l *logx.Limiter) Option {
	return &optionImpl{func(opts *options) error {
		opts.limiter = l
		return nil
	}}
}

// WithMetrics sets the counter registry. Without it a private one is used.
func WithMetrics(m *control.MetricsRegistry) Option {
	return &optionImpl{func(opts *options) error {
		opts.metrics = m
		return nil
	}}
}

// WithReceiveBufferSize sets the size of the buffer a single read may fill.
func WithReceiveBufferSize(n int) Option {
	return &optionImpl{func(opts *options) error {
		if n <= 0 {
			return api.ConfigError("tcp: receive buffer size must be positive, got %d", n)
		}
		opts.recvBufSize = n
		return nil
	}}
}

// WithBindAddress restricts the listener to one local address. An IPv6
// address selects an IPv6 listener.
func WithBindAddress(addr netip.Addr) Option {
	return &optionImpl{func(opts *options) error {
		if !addr.IsValid() {
			return api.ConfigError("tcp: invalid bind address")
		}
		opts.bind = addr
		return nil
	}}
}

// WithIdleTimeout arms every new client's timer for d right after
// EventConnected is delivered, unless the callback set it already.
func WithIdleTimeout(d time.Duration) Option {
	return &optionImpl{func(opts *options) error {
		if d < 0 {
			return api.ConfigError("tcp: negative idle timeout")
		}
		opts.idle = d
		return nil
	}}
}

// WithCPU makes Run pin its OS thread to cpu for the duration of the loop.
func WithCPU(cpu int) Option {
	return &optionImpl{func(opts *options) error {
		if cpu < 0 {
			return api.ConfigError("tcp: negative cpu %d", cpu)
		}
		opts.cpu = cpu
		return nil
	}}
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		cpu:         -1,
		recvBufSize: DefaultReceiveBufferSize,
		bind:        netip.IPv4Unspecified(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyTCP(cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.loggerSet {
		cfg.logger = logx.Default()
	}
	if cfg.limiter == nil {
		cfg.limiter = logx.NewLimiter(nil)
	}
	if cfg.metrics == nil {
		cfg.metrics = control.NewMetricsRegistry()
	}
	return cfg, nil
}
