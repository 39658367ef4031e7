// File: can/options.go
// Author: momentics <momentics@gmail.com>

package can

import (
	"github.com/momentics/socev/api"
	"github.com/momentics/socev/control"
	"github.com/momentics/socev/internal/logx"
)

// RawFilter is one entry of the kernel filter list of a bus.
type RawFilter struct {
	ID   uint32
	Mask uint32
}

// BusOpener opens bus sockets and installs kernel filters on them. The
// returned descriptor must be non-blocking and deliver one frame per read;
// the Context owns and closes it.
type BusOpener interface {
	Open(name string) (int, error)
	SetFilters(fd int, filters []RawFilter) error
}

type options struct {
	cpu       int
	logger    *logx.Logger
	loggerSet bool
	limiter   *logx.Limiter
	metrics   *control.MetricsRegistry
	opener    BusOpener
}

// Option configures a Context.
type Option interface {
	applyCAN(*options) error
}

type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) applyCAN(opts *options) error {
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

// WithBusOpener replaces SocketCAN, mostly for tests.
func WithBusOpener(o BusOpener) Option {
	return &optionImpl{func(opts *options) error {
		if o == nil {
			return api.ConfigError("can: nil bus opener")
		}
		opts.opener = o
		return nil
	}}
}

// WithCPU makes Run pin its OS thread to cpu for the duration of the loop.
func WithCPU(cpu int) Option {
	return &optionImpl{func(opts *options) error {
		if cpu < 0 {
			return api.ConfigError("can: negative cpu %d", cpu)
		}
		opts.cpu = cpu
		return nil
	}}
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		cpu:    -1,
		opener: defaultOpener(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyCAN(cfg); err != nil {
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
