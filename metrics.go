package authkit

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one lifecycle counter or histogram.
type MetricID uint16

const (
	// MetricSignInSuccess counts sign-ins that produced a session.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts rejected or failed sign-ins.
	MetricSignInFailure
	// MetricSignUpSuccess counts registrations that ended signed in.
	MetricSignUpSuccess
	// MetricSignUpRejected counts registrations refused by validation or the backend.
	MetricSignUpRejected
	// MetricSignUpFailure counts registrations lost to transport or login errors.
	MetricSignUpFailure
	// MetricSignOut counts explicit and forced sign-outs.
	MetricSignOut
	// MetricSessionRestored counts sessions rebuilt from the token store.
	MetricSessionRestored
	// MetricRefreshSuccess counts refreshes that produced a new access token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refreshes that did not.
	MetricRefreshFailure
	// MetricRefreshCoalesced counts callers that attached to an in-flight refresh.
	MetricRefreshCoalesced
	// MetricRefreshStale counts refresh results discarded after a sign-out raced them.
	MetricRefreshStale
	// MetricRequestRetried counts requests replayed once after a refresh.
	MetricRequestRetried
	// MetricRequestAuthFailed counts requests whose retry still came back unauthorized.
	MetricRequestAuthFailed
	// MetricStoreFailure counts token store reads and writes that errored.
	MetricStoreFailure
	// MetricSocketOpened counts fresh websocket dials.
	MetricSocketOpened
	// MetricSocketReused counts dials satisfied by a live cached socket.
	MetricSocketReused
	// MetricSocketClosed counts sockets closed by callers or sign-out.
	MetricSocketClosed
	// MetricRequestLatency is the authenticated-request latency histogram.
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size set of atomic counters plus one latency histogram.
// A nil or disabled Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates a metrics set per cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is being recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the latency histogram for id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRequestLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram. Safe to call concurrently
// with recording.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
