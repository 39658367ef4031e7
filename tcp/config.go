// File: tcp/config.go
// Author: momentics <momentics@gmail.com>
//
// TCP context configuration and conversion from the TOML section.

package tcp

import (
	"net/netip"
	"time"

	"github.com/momentics/socev/api"
	"github.com/momentics/socev/control"
)

// MaxClientLimit bounds MaxClientCount; every client costs two descriptors.
const MaxClientLimit = 1 << 20

// Config is the creation-time configuration of a Context.
type Config struct {
	// Port to listen on. Zero picks an ephemeral port, see Context.Addr.
	Port uint16
	// MaxClientCount is the number of simultaneously connected clients.
	MaxClientCount uint32
	// Callback receives every event. It may be nil.
	Callback api.Callback
}

// Validate checks the configuration without touching the OS.
func (c Config) Validate() error {
	if c.MaxClientCount == 0 {
		return api.ConfigError("tcp: max client count must be positive")
	}
	if c.MaxClientCount > MaxClientLimit {
		return api.ConfigError("tcp: max client count %d exceeds %d", c.MaxClientCount, MaxClientLimit)
	}
	return nil
}

// ConfigFromSection converts a decoded [tcp] section. The returned options
// carry the settings that have no place in Config.
func ConfigFromSection(sec *control.TCPSection, cb api.Callback) (Config, []Option, error) {
	if sec == nil {
		return Config{}, nil, api.ConfigError("tcp: missing [tcp] section")
	}
	cfg := Config{
		Port:           sec.Port,
		MaxClientCount: sec.MaxClientCount,
		Callback:       cb,
	}
	var opts []Option
	if sec.Bind != "" {
		addr, err := netip.ParseAddr(sec.Bind)
		if err != nil {
			return Config{}, nil, api.NewError(api.ErrCodeConfigInvalid, "tcp: bad bind address").
				WithContext("bind", sec.Bind).
				WithCause(err)
		}
		opts = append(opts, WithBindAddress(addr))
	}
	if sec.RecvBufferSize != 0 {
		opts = append(opts, WithReceiveBufferSize(sec.RecvBufferSize))
	}
	if sec.IdleTimeoutMS > 0 {
		opts = append(opts, WithIdleTimeout(time.Duration(sec.IdleTimeoutMS)*time.Millisecond))
	}
	return cfg, opts, cfg.Validate()
}
