package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "early_design"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	Uploads          *prometheus.CounterVec // labels: outcome={accepted,rejected}
	EPWCache         *prometheus.CounterVec // labels: result={hit,miss}
	EPWParseDuration prometheus.Histogram
	ScratchWrites    *prometheus.CounterVec // labels: kind={epw,wea,sunpath}
	ScratchDeletes   prometheus.Counter

	// Cloud API metrics.
	CloudRequests    *prometheus.CounterVec   // labels: endpoint, outcome={success,error}
	CloudAPIDuration *prometheus.HistogramVec // labels: endpoint

	// Artifact fetch metrics.
	ArtifactFetches       *prometheus.CounterVec // labels: outcome={success,error,cleared}
	StaleFetchesDiscarded prometheus.Counter

	ActiveSessions prometheus.Gauge
	ActivityEvents *prometheus.CounterVec // labels: type, outcome={published,error,dropped}
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Weather file uploads by outcome.",
		}, []string{"outcome"}),
		EPWCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epw_cache_total",
			Help:      "Parsed weather file cache lookups by result.",
		}, []string{"result"}),
		EPWParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "epw_parse_duration_seconds",
			Help:      "Duration of parsing one EPW file.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ScratchWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scratch_writes_total",
			Help:      "Files written to scratch storage by kind.",
		}, []string{"kind"}),
		ScratchDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scratch_deletes_total",
			Help:      "Files removed from scratch storage after their weather file was released.",
		}),
		CloudRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cloud_requests_total",
			Help:      "Pollination API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		CloudAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cloud_api_duration_seconds",
			Help:      "Pollination API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		ArtifactFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_fetches_total",
			Help:      "Artifact selection callbacks by outcome.",
		}, []string{"outcome"}),
		StaleFetchesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_fetches_discarded_total",
			Help:      "Artifact fetch results dropped because the selection changed in flight.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live dashboard sessions.",
		}),
		ActivityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Activity events handed to the publisher by type and outcome.",
		}, []string{"type", "outcome"}),
	}

	prometheus.MustRegister(
		m.Uploads,
		m.EPWCache,
		m.EPWParseDuration,
		m.ScratchWrites,
		m.ScratchDeletes,
		m.CloudRequests,
		m.CloudAPIDuration,
		m.ArtifactFetches,
		m.StaleFetchesDiscarded,
		m.ActiveSessions,
		m.ActivityEvents,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Uploads:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "uploads_total"}, []string{"outcome"}),
		EPWCache:              prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "epw_cache_total"}, []string{"result"}),
		EPWParseDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "epw_parse_duration_seconds"}),
		ScratchWrites:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "scratch_writes_total"}, []string{"kind"}),
		ScratchDeletes:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "scratch_deletes_total"}),
		CloudRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cloud_requests_total"}, []string{"endpoint", "outcome"}),
		CloudAPIDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "cloud_api_duration_seconds"}, []string{"endpoint"}),
		ArtifactFetches:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "artifact_fetches_total"}, []string{"outcome"}),
		StaleFetchesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "stale_fetches_discarded_total"}),
		ActiveSessions:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "active_sessions"}),
		ActivityEvents:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "activity_events_total"}, []string{"type", "outcome"}),
	}
}
