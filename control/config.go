// control/config.go
// Author: momentics <momentics@gmail.com>
//
// File-based configuration for the socev binaries. The reactors themselves
// take plain Go structs; this layer decodes TOML into neutral sections that
// the tcp and can packages convert.

package control

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/momentics/socev/api"
)

// Disabled is the timeout value that turns a timer off.
const Disabled int32 = -1

// File is the root of a socev TOML configuration file.
type File struct {
	LogLevel         string      `toml:"log_level"`
	ServiceTimeoutMS int         `toml:"service_timeout_ms"`
	TCP              *TCPSection `toml:"tcp"`
	CAN              *CANSection `toml:"can"`
}

// TCPSection configures a TCP context.
type TCPSection struct {
	Port           uint16 `toml:"port"`
	MaxClientCount uint32 `toml:"max_client_count"`
	Bind           string `toml:"bind"`
	RecvBufferSize int    `toml:"recv_buffer_size"`
	IdleTimeoutMS  int64  `toml:"idle_timeout_ms"`
}

// CANSection configures a CAN context.
type CANSection struct {
	Buses   []BusSection    `toml:"buses"`
	Filters []FilterSection `toml:"filters"`
}

// BusSection names one CAN interface.
type BusSection struct {
	Name string `toml:"name"`
}

// FilterSection is one kernel-level identifier/mask filter. Missing timeouts
// are disabled.
type FilterSection struct {
	Bus           string `toml:"bus"`
	ID            uint32 `toml:"id"`
	Mask          uint32 `toml:"mask"`
	RecvTimeoutMS *int32 `toml:"recv_timeout_ms"`
	SendTimeoutMS *int32 `toml:"send_timeout_ms"`
}

// RecvTimeout returns the configured receive timeout or Disabled.
func (f FilterSection) RecvTimeout() int32 {
	if f.RecvTimeoutMS == nil {
		return Disabled
	}
	return *f.RecvTimeoutMS
}

// SendTimeout returns the configured send timeout or Disabled.
func (f FilterSection) SendTimeout() int32 {
	if f.SendTimeoutMS == nil {
		return Disabled
	}
	return *f.SendTimeoutMS
}

// LoadFile decodes the TOML file at path.
func LoadFile(path string) (*File, error) {
	f := &File{ServiceTimeoutMS: -1}
	md, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, api.NewError(api.ErrCodeConfigInvalid, "decode config").
			WithContext("path", path).
			WithCause(err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err.WithContext("path", path)
	}
	return f, nil
}

// Parse decodes TOML from a string.
func Parse(data string) (*File, error) {
	f := &File{ServiceTimeoutMS: -1}
	md, err := toml.Decode(data, f)
	if err != nil {
		return nil, api.NewError(api.ErrCodeConfigInvalid, "decode config").WithCause(err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	return f, nil
}

// checkUndecoded rejects unknown keys, which are almost always typos.
func checkUndecoded(md toml.MetaData) *api.Error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.String())
	}
	return api.ConfigError("unknown config keys: %s", strings.Join(names, ", "))
}
