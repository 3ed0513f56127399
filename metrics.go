package geoAuth

import (
	"time"

	"github.com/MrEthical07/geoAuth/internal/metrics"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that created a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginRejected counts attempts refused by a check.
	MetricLoginRejected
	// MetricLoginFailure counts attempts that passed the checks but failed to persist.
	MetricLoginFailure
	MetricLogoutManual
	MetricLogoutAuto
	MetricLogoutAutoOutsidePerimeter
	MetricLogoutAutoPermissionRevoked
	MetricLogoutAutoServicesDisabled
	MetricLogoutAutoLocationUnavailable
	MetricLogoutFailure
	MetricReconcileKept
	MetricReconcileLogout
	MetricMonitorStarted
	MetricMonitorStopped
	// MetricSampleReceived counts samples the monitor has finished handling, nil included.
	MetricSampleReceived
	// MetricSampleMissed counts nil samples seen by the monitor.
	MetricSampleMissed
	// MetricLoginLatency is the AttemptLogin latency histogram.
	MetricLoginLatency
	metricIDCount
)

// Metrics holds the engine's lock-free counters.
type Metrics struct {
	enabled       bool
	enableLatency bool
	table         *metrics.Table
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics set. A disabled set ignores every write.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
		table:         metrics.NewTable(int(metricIDCount)),
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.table.Add(int(id))
}

// Observe records a latency for a histogram metric. Only MetricLoginLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricLoginLatency {
		return
	}
	m.table.Observe(int(id), d)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.table.Load(int(id))
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricLoginLatency {
			continue
		}
		s.Counters[id] = m.table.Load(int(id))
	}
	if m.enableLatency {
		s.Histograms[MetricLoginLatency] = m.table.Buckets(int(MetricLoginLatency))
	}
	return s
}

func autoLogoutMetric(reason LogoutReason) (MetricID, bool) {
	switch reason {
	case ReasonOutsidePerimeter:
		return MetricLogoutAutoOutsidePerimeter, true
	case ReasonPermissionRevoked:
		return MetricLogoutAutoPermissionRevoked, true
	case ReasonServicesDisabled:
		return MetricLogoutAutoServicesDisabled, true
	case ReasonLocationUnavailable:
		return MetricLogoutAutoLocationUnavailable, true
	default:
		return 0, false
	}
}
