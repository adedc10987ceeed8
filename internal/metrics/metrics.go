package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for phpvm. All methods are safe on a
// nil receiver so callers never guard instrumentation sites.
type Metrics struct {
	registry                   *prometheus.Registry
	refreshDurationSeconds     prometheus.Histogram
	switchesTotal              *prometheus.CounterVec
	recoveriesTotal            *prometheus.CounterVec
	spawnErrorsTotal           prometheus.Counter
	busyGauge                  prometheus.Gauge
	installedVersionsGauge     prometheus.Gauge
	lastSuccessfulRefreshGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		refreshDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phpvm_refresh_duration_seconds",
			Help:    "Duration of environment refresh cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		switchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phpvm_switches_total",
			Help: "Total version switches by outcome.",
		}, []string{"outcome"}),
		recoveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phpvm_recoveries_total",
			Help: "Total forced recoveries by outcome.",
		}, []string{"outcome"}),
		spawnErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phpvm_spawn_errors_total",
			Help: "Total shell commands that could not be spawned.",
		}),
		busyGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "phpvm_busy",
			Help: "Whether a switch or recovery is currently in flight (0 or 1).",
		}),
		installedVersionsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "phpvm_installed_versions",
			Help: "Number of discovered PHP installations.",
		}),
		lastSuccessfulRefreshGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "phpvm_last_successful_refresh_timestamp",
			Help: "Unix timestamp of the last successful refresh.",
		}),
	}

	registry.MustRegister(
		m.refreshDurationSeconds,
		m.switchesTotal,
		m.recoveriesTotal,
		m.spawnErrorsTotal,
		m.busyGauge,
		m.installedVersionsGauge,
		m.lastSuccessfulRefreshGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRefreshDuration records the duration of a completed refresh cycle.
func (m *Metrics) ObserveRefreshDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.refreshDurationSeconds.Observe(duration.Seconds())
}

// IncSwitches increments the switch counter for the given outcome.
func (m *Metrics) IncSwitches(outcome string) {
	if m == nil {
		return
	}
	m.switchesTotal.WithLabelValues(outcome).Inc()
}

// IncRecoveries increments the recovery counter for the given outcome.
func (m *Metrics) IncRecoveries(outcome string) {
	if m == nil {
		return
	}
	m.recoveriesTotal.WithLabelValues(outcome).Inc()
}

// IncSpawnErrors increments the spawn failure counter.
func (m *Metrics) IncSpawnErrors() {
	if m == nil {
		return
	}
	m.spawnErrorsTotal.Inc()
}

// SetBusy reflects the busy gate on a gauge.
func (m *Metrics) SetBusy(busy bool) {
	if m == nil {
		return
	}
	if busy {
		m.busyGauge.Set(1)
		return
	}
	m.busyGauge.Set(0)
}

// SetInstalledVersions sets the discovered-installation gauge.
func (m *Metrics) SetInstalledVersions(count int) {
	if m == nil {
		return
	}
	m.installedVersionsGauge.Set(float64(count))
}

// SetLastSuccessfulRefreshTimestamp sets the last successful refresh time.
func (m *Metrics) SetLastSuccessfulRefreshTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulRefreshGauge.Set(float64(t.Unix()))
}
