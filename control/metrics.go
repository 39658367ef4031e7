// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters for reactor monitoring.
// Exposes counters in a thread-safe map with dynamic registration.

package control

import (
	"sync"
	"time"
)

// Counter names maintained by the reactors.
const (
	MetricServiceCalls   = "service_calls"
	MetricAccepted       = "accepted"
	MetricRejected       = "rejected"
	MetricDisconnected   = "disconnected"
	MetricReceivedBytes  = "received_bytes"
	MetricWrittenBytes   = "written_bytes"
	MetricTimerExpired   = "timer_expired"
	MetricIoFailures     = "io_failures"
	MetricFramesReceived = "frames_received"
	MetricFramesDropped  = "frames_dropped"
	MetricFramesSent     = "frames_sent"
)

// MetricsRegistry holds named counters and gauges.
// The reactors only write from their service thread, but snapshots may be
// taken from any goroutine.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]int64
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]int64),
	}
}

// Add increments a counter by delta. A nil registry ignores the call.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	if mr == nil {
		return
	}
	mr.mu.Lock()
	mr.metrics[key] += delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Inc increments a counter by one.
func (mr *MetricsRegistry) Inc(key string) { mr.Add(key, 1) }

// Set sets or updates a gauge.
func (mr *MetricsRegistry) Set(key string, value int64) {
	if mr == nil {
		return
	}
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get returns the current value of key.
func (mr *MetricsRegistry) Get(key string) int64 {
	if mr == nil {
		return 0
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.metrics[key]
}

// Updated is the time of the last change.
func (mr *MetricsRegistry) Updated() time.Time {
	if mr == nil {
		return time.Time{}
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	if mr == nil {
		return map[string]int64{}
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
