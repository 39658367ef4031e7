// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Named probes over reactor state, evaluated on demand.

package control

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DebugProbes maps probe names to functions reading reactor state. Probes
// are evaluated on the caller's goroutine, so reactors expect DumpState to be
// called from their service thread.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates an empty probe set.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{probes: make(map[string]func() any, 8)}
}

// RegisterProbe adds or replaces the probe called name. A nil fn removes it.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if fn == nil {
		delete(dp.probes, name)
		return
	}
	dp.probes[name] = fn
}

// Names returns the registered probe names in sorted order.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	names := make([]string, 0, len(dp.probes))
	for k := range dp.probes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Probe evaluates a single probe.
func (dp *DebugProbes) Probe(name string) (any, bool) {
	dp.mu.RLock()
	fn, ok := dp.probes[name]
	dp.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return eval(fn), true
}

// DumpState evaluates every probe whose name starts with one of prefixes,
// or every probe when no prefix is given. A probe that panics reports the
// panic as its value instead of aborting the dump.
func (dp *DebugProbes) DumpState(prefixes ...string) map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes))
	for k, fn := range dp.probes {
		if !hasAnyPrefix(k, prefixes) {
			continue
		}
		out[k] = eval(fn)
	}
	return out
}

func eval(fn func() any) (v any) {
	defer func() {
		if r := recover(); r != nil {
			v = fmt.Sprintf("probe panic: %v", r)
		}
	}()
	return fn()
}

func hasAnyPrefix(s string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
