package sessionguard

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricVerifySuccess
	MetricVerifyFailure
	MetricResendSuccess
	MetricResendFailure
	MetricResendRateLimited
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginLocked
	// MetricLockoutApplied counts failures that crossed the lockout threshold.
	MetricLockoutApplied
	MetricLoginRateLimited
	MetricPasswordRehashed
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	// MetricRefreshRaceLost counts refreshes that lost a concurrent rotation
	// of the same token.
	MetricRefreshRaceLost
	MetricMassRevocation
	MetricLogout
	MetricLogoutFailure
	MetricNotifyFailure
	MetricStoreConflict
	// MetricLoginLatency is the only histogram and must stay last.
	MetricLoginLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of every latency bucket but
// the last, which is unbounded.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBuckets = len(latencyBounds) + 1

// LatencyBucketBounds returns the finite upper bounds of the latency
// histogram. Snapshots carry one more bucket for everything above the last.
func LatencyBucketBounds() []time.Duration {
	return append([]time.Duration(nil), latencyBounds[:]...)
}

// counter occupies a full cache line so hot counters never share one.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free engine counters and the login latency
// histogram. A disabled Metrics drops every update.
type Metrics struct {
	enabled  bool
	latency  bool
	counters [metricIDCount]counter
	login    [latencyBuckets]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the counters. Histogram
// buckets are non-cumulative with upper bounds 5ms, 10ms, 25ms, 50ms,
// 100ms, 250ms, 500ms and +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricLoginLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d for MetricLoginLatency. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricLoginLatency {
		return
	}
	m.login[latencyBucket(d)].Add(1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricLoginLatency {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter. A disabled Metrics yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < MetricLoginLatency; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.latency {
		buckets := make([]uint64, latencyBuckets)
		for i := range buckets {
			buckets[i] = m.login[i].Load()
		}
		s.Histograms[MetricLoginLatency] = buckets
	}
	return s
}

func latencyBucket(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
