// File: internal/logx/logx.go
// Author: momentics <momentics@gmail.com>
//
// Structured logging defaults shared by the reactors and the demo binaries.

package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the generic logiface logger used throughout the module.
// A nil *Logger is valid and discards everything.
type Logger = logiface.Logger[logiface.Event]

// New builds a JSON logger writing to w at the given minimum level.
func New(w io.Writer, level logiface.Level) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// Default logs warnings and above to stderr.
func Default() *Logger {
	return New(os.Stderr, logiface.LevelWarning)
}

// ParseLevel accepts the syslog keywords logiface prints, plus a few aliases.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "none":
		return logiface.LevelDisabled, nil
	case "emerg", "emergency":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational", "":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf("logx: unknown level %q", s)
	}
}

// Limiter throttles repetitive warnings per category, e.g. one category per
// failure kind, so a misbehaving peer cannot flood the log.
type Limiter struct {
	rates *catrate.Limiter
}

// DefaultRates allows short bursts while capping the sustained rate.
var DefaultRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// NewLimiter creates a limiter using rates, or DefaultRates if rates is nil.
func NewLimiter(rates map[time.Duration]int) *Limiter {
	if rates == nil {
		rates = DefaultRates
	}
	return &Limiter{rates: catrate.NewLimiter(rates)}
}

// Allow reports whether a message in category may be logged now.
// A nil Limiter allows everything.
func (x *Limiter) Allow(category string) bool {
	if x == nil || x.rates == nil {
		return true
	}
	_, ok := x.rates.Allow(category)
	return ok
}
