// Package prom exports the cache's Metrics signals as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/colstore/blockcache/cache"
)

// lookup label values; "expected" marks ExpectInCache lookups so probe
// misses can be separated from anomalies in dashboards.
const (
	lookupExpected = "expected"
	lookupProbe    = "probe"
)

// Adapter implements cache.Metrics on top of Prometheus collectors.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits         *prometheus.CounterVec
	misses       *prometheus.CounterVec
	inserts      prometheus.Counter
	insertedB    prometheus.Counter
	evictions    prometheus.Counter
	evictedB     prometheus.Counter
	usageBytes   prometheus.Gauge
	usageEntries prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits by lookup mode",
			ConstLabels: constLabels,
		}, []string{"lookup"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses by lookup mode",
			ConstLabels: constLabels,
		}, []string{"lookup"}),
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "inserts_total",
			Help:        "Entries admitted to the cache index",
			ConstLabels: constLabels,
		}),
		insertedB: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "inserted_bytes_total",
			Help:        "Charge admitted to the cache index",
			ConstLabels: constLabels,
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Entries whose bytes were freed",
			ConstLabels: constLabels,
		}),
		evictedB: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evicted_bytes_total",
			Help:        "Charge of freed entries",
			ConstLabels: constLabels,
		}),
		usageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "usage_bytes",
			Help:        "Summed charge of indexed entries",
			ConstLabels: constLabels,
		}),
		usageEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "usage_entries",
			Help:        "Number of indexed entries",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.inserts, a.insertedB,
		a.evictions, a.evictedB, a.usageBytes, a.usageEntries)
	return a
}

// Hit increments the hit counter for the lookup mode.
func (a *Adapter) Hit(expected bool) { a.hits.WithLabelValues(mode(expected)).Inc() }

// Miss increments the miss counter for the lookup mode.
func (a *Adapter) Miss(expected bool) { a.misses.WithLabelValues(mode(expected)).Inc() }

// Insert counts an admitted entry and its charge.
func (a *Adapter) Insert(charge int64) {
	a.inserts.Inc()
	a.insertedB.Add(float64(charge))
}

// Evict counts a freed entry and its charge.
func (a *Adapter) Evict(charge int64) {
	a.evictions.Inc()
	a.evictedB.Add(float64(charge))
}

// Usage applies residency deltas to the usage gauges.
func (a *Adapter) Usage(deltaBytes int64, deltaEntries int) {
	a.usageBytes.Add(float64(deltaBytes))
	a.usageEntries.Add(float64(deltaEntries))
}

func mode(expected bool) string {
	if expected {
		return lookupExpected
	}
	return lookupProbe
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
