// File: can/config.go
// Author: momentics <momentics@gmail.com>
//
// CAN context configuration and conversion from the TOML section.

package can

import (
	"time"

	"github.com/momentics/socev/api"
	"github.com/momentics/socev/control"
)

// Disabled turns a timeout off. Zero is treated the same way.
const Disabled int32 = -1

// MaxBusNameLen is IFNAMSIZ without the terminator.
const MaxBusNameLen = 15

// BusConfig names one CAN interface, e.g. "can0" or "vcan0".
type BusConfig struct {
	Name string
}

// FilterConfig is one kernel identifier/mask filter and its timeouts.
type FilterConfig struct {
	BusName       string
	ID            uint32 // may carry EFFFlag or RTRFlag
	Mask          uint32
	RecvTimeoutMS int32
	SendTimeoutMS int32
}

// RecvTimeout is the receive timeout, zero when disabled.
func (f FilterConfig) RecvTimeout() time.Duration { return timeout(f.RecvTimeoutMS) }

// SendTimeout is the send timeout, zero when disabled.
func (f FilterConfig) SendTimeout() time.Duration { return timeout(f.SendTimeoutMS) }

func timeout(ms int32) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// Config is the creation-time configuration of a Context.
type Config struct {
	Buses    []BusConfig
	Callback api.Callback
	Filters  []FilterConfig
}

// Validate checks the configuration without touching the OS.
func (c Config) Validate() error {
	if len(c.Buses) == 0 {
		return api.ConfigError("can: no buses configured")
	}
	seen := make(map[string]bool, len(c.Buses))
	for i, b := range c.Buses {
		if b.Name == "" {
			return api.ConfigError("can: bus %d has no name", i)
		}
		if len(b.Name) > MaxBusNameLen {
			return api.ConfigError("can: bus name %q longer than %d bytes", b.Name, MaxBusNameLen)
		}
		if seen[b.Name] {
			return api.ConfigError("can: duplicate bus %q", b.Name)
		}
		seen[b.Name] = true
	}
	for i, f := range c.Filters {
		if !seen[f.BusName] {
			return api.ConfigError("can: filter %d references unknown bus %q", i, f.BusName)
		}
		if f.ID&^(EFFFlag|RTRFlag) > EFFMask {
			return api.ConfigError("can: filter %d identifier %#x out of range", i, f.ID)
		}
		if f.RecvTimeoutMS < Disabled || f.SendTimeoutMS < Disabled {
			return api.ConfigError("can: filter %d has a negative timeout", i)
		}
	}
	return nil
}

// ConfigFromSection converts a decoded [can] section.
func ConfigFromSection(sec *control.CANSection, cb api.Callback) (Config, error) {
	if sec == nil {
		return Config{}, api.ConfigError("can: missing [can] section")
	}
	cfg := Config{Callback: cb}
	for _, b := range sec.Buses {
		cfg.Buses = append(cfg.Buses, BusConfig{Name: b.Name})
	}
	for _, f := range sec.Filters {
		cfg.Filters = append(cfg.Filters, FilterConfig{
			BusName:       f.Bus,
			ID:            f.ID,
			Mask:          f.Mask,
			RecvTimeoutMS: f.RecvTimeout(),
			SendTimeoutMS: f.SendTimeout(),
		})
	}
	return cfg, cfg.Validate()
}

// TimerKind tells the receive timer from the send timer of a filter.
type TimerKind uint8

const (
	TimerNone TimerKind = iota
	TimerRecv
	TimerSend
)

func (k TimerKind) String() string {
	switch k {
	case TimerRecv:
		return "recv"
	case TimerSend:
		return "send"
	default:
		return "none"
	}
}
