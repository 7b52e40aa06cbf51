// Package metrics registers and updates the Prometheus series rcache
// exposes, generalizing the teacher pack's "expose the default registry via
// promhttp.Handler()" wiring into cache-specific counters and gauges.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every Prometheus series rcache updates. A nil *Metrics is
// valid everywhere its methods are called: every method is a no-op on a
// nil receiver, so callers never need to branch on whether metrics were
// configured.
type Metrics struct {
	operations    *prometheus.CounterVec
	flushDuration prometheus.Histogram
	diskBytes     prometheus.Gauge
	memoryBytes   prometheus.Gauge
	evictions     *prometheus.CounterVec
}

// New constructs and registers rcache's metrics against reg. If reg is
// nil, [prometheus.DefaultRegisterer] is used. Series already registered
// on reg (by an earlier New, e.g. another Cache in the same process) are
// reused rather than registered twice.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcache_operations_total",
			Help: "Count of rcache facade operations by op and result.",
		}, []string{"op", "result"}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcache_flush_duration_seconds",
			Help:    "Duration of Flush calls, including the trim pass.",
			Buckets: prometheus.DefBuckets,
		}),
		diskBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rcache_disk_bytes",
			Help: "Total bytes occupied by payload files on disk after the last flush.",
		}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rcache_memory_bytes",
			Help: "Total bytes held by non-deleted entries in the LRU index.",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rcache_evictions_total",
			Help: "Count of entries evicted by tier (memory or disk).",
		}, []string{"tier"}),
	}

	adopt := func(c prometheus.Collector) prometheus.Collector {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			return are.ExistingCollector
		}
		return c
	}
	m.operations = adopt(m.operations).(*prometheus.CounterVec)
	m.flushDuration = adopt(m.flushDuration).(prometheus.Histogram)
	m.diskBytes = adopt(m.diskBytes).(prometheus.Gauge)
	m.memoryBytes = adopt(m.memoryBytes).(prometheus.Gauge)
	m.evictions = adopt(m.evictions).(*prometheus.CounterVec)

	return m
}

// Observe increments the per-operation counter. result is "ok" or "error".
func (m *Metrics) Observe(op, result string) {
	if m == nil {
		return
	}

	m.operations.WithLabelValues(op, result).Inc()
}

// ObserveFlush records a flush pass's wall-clock duration in seconds.
func (m *Metrics) ObserveFlush(seconds float64) {
	if m == nil {
		return
	}

	m.flushDuration.Observe(seconds)
}

// SetDiskBytes records the on-disk payload total after a flush.
func (m *Metrics) SetDiskBytes(n int64) {
	if m == nil {
		return
	}

	m.diskBytes.Set(float64(n))
}

// SetMemoryBytes records the current in-memory cache size.
func (m *Metrics) SetMemoryBytes(n int64) {
	if m == nil {
		return
	}

	m.memoryBytes.Set(float64(n))
}

// AddEvictions increments the eviction counter for tier ("memory" or
// "disk") by n.
func (m *Metrics) AddEvictions(tier string, n int) {
	if m == nil || n <= 0 {
		return
	}

	m.evictions.WithLabelValues(tier).Add(float64(n))
}
