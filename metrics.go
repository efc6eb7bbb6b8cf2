package enroll

import (
	"sync/atomic"
	"time"
)

// MetricID names one in-house counter. IDs are dense and stable within a
// release; snapshot consumers should key on the exported constants.
type MetricID uint16

const (
	// MetricLoginStarted counts attempts that passed phone validation.
	MetricLoginStarted MetricID = iota
	// MetricCodeSent counts successful code requests.
	MetricCodeSent
	// MetricLoginCompleted counts finalized enrollments.
	MetricLoginCompleted
	// MetricLoginFailed counts attempts torn down on any non-rate-limit error.
	MetricLoginFailed
	// MetricLoginRateLimited counts code requests refused for flood control.
	MetricLoginRateLimited
	// MetricPasswordRequired counts attempts that needed a second factor.
	MetricPasswordRequired
	// MetricPasswordFailure counts wrong two-step passwords.
	MetricPasswordFailure
	// MetricPasswordAttemptsExceeded counts attempts killed by the retry cap.
	MetricPasswordAttemptsExceeded
	// MetricAttemptReplaced counts live attempts displaced by a new SubmitPhone.
	MetricAttemptReplaced
	// MetricAttemptAbandoned counts Abandon and AbandonStale teardowns.
	MetricAttemptAbandoned
	// MetricCredentialStored counts durable credential writes.
	MetricCredentialStored
	// MetricCredentialExportFailed counts export or probe failures after sign-in.
	MetricCredentialExportFailed
	// MetricCodeFetched counts successful FetchLoginCode calls.
	MetricCodeFetched
	// MetricCodeFetchEmpty counts FetchLoginCode calls that found no code.
	MetricCodeFetchEmpty
	// MetricAccountRemoved counts RemoveAccount deletions.
	MetricAccountRemoved
	// MetricLoginLatency is the phone-to-completion duration histogram.
	MetricLoginLatency
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

// Metrics holds allocation-free atomic counters. A nil or disabled Metrics
// is safe to use from any goroutine.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a login duration. Only MetricLoginLatency carries a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricLoginLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency recording is on, the
// login-duration histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, metricIDCount),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	if m == nil || !m.enabled {
		return snap
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if v := atomic.LoadUint64(&m.counters[id].value); v != 0 {
			snap.Counters[id] = v
		}
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLoginLatency].buckets[i])
		}
		snap.Histograms[MetricLoginLatency] = buckets
	}
	return snap
}

// bucketIndex maps a duration to log-scale buckets: <1s, <2s, <5s, <10s,
// <30s, <1m, <5m, and everything slower. Whole-login latency is dominated
// by the human typing the code, so the scale is coarse.
func bucketIndex(d time.Duration) int {
	switch {
	case d < time.Second:
		return 0
	case d < 2*time.Second:
		return 1
	case d < 5*time.Second:
		return 2
	case d < 10*time.Second:
		return 3
	case d < 30*time.Second:
		return 4
	case d < time.Minute:
		return 5
	case d < 5*time.Minute:
		return 6
	default:
		return 7
	}
}
