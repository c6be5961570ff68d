package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geofix"

// Metrics holds the Prometheus collectors for lookups and sweeps.
type Metrics struct {
	// labels: pass={full,no-number,city-only,import}, outcome={found,empty,failed,skipped}
	GeocodeLookups  *prometheus.CounterVec
	GeocodeDuration prometheus.Histogram
	// labels: result={hit,miss}
	GeocodeCache *prometheus.CounterVec
	// labels: result={fixed,failed,persist_error}
	SweepRecords *prometheus.CounterVec
	SweepLastRun prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		GeocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_lookups_total",
			Help:      "Geocoding lookups by pass and outcome.",
		}, []string{"pass", "outcome"}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_lookup_duration_seconds",
			Help:      "Upstream geocoding request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		SweepRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_records_total",
			Help:      "Provider records processed by the coordinate sweep, by result.",
		}, []string{"result"}),
		SweepLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sweep_last_run_timestamp_seconds",
			Help:      "Unix time at which the last sweep finished.",
		}),
	}
}

// NewMetrics creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := newMetrics()
	reg.MustRegister(
		m.GeocodeLookups,
		m.GeocodeDuration,
		m.GeocodeCache,
		m.SweepRecords,
		m.SweepLastRun,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveLookup records one lookup for a pass.
func (m *Metrics) ObserveLookup(pass, outcome string, took time.Duration, cached bool) {
	if m == nil {
		return
	}
	m.GeocodeLookups.WithLabelValues(pass, outcome).Inc()
	if !cached && outcome != "skipped" {
		m.GeocodeDuration.Observe(took.Seconds())
	}
}

// CacheResult implements geocode.CacheObserver.
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.GeocodeCache.WithLabelValues("hit").Inc()
		return
	}
	m.GeocodeCache.WithLabelValues("miss").Inc()
}

// ObserveRecord records the final state of one swept record.
func (m *Metrics) ObserveRecord(result string) {
	if m == nil {
		return
	}
	m.SweepRecords.WithLabelValues(result).Inc()
}

// SweepFinished stamps the completion time of a sweep.
func (m *Metrics) SweepFinished(at time.Time) {
	if m == nil {
		return
	}
	m.SweepLastRun.Set(float64(at.Unix()))
}
