package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the engine.
type Metrics struct {
	// Acquisition metrics.
	FetchRequests    *prometheus.CounterVec   // labels: source, outcome={success,transient_error,permanent_error}
	FetchDuration    *prometheus.HistogramVec // labels: source
	WindowsCompleted prometheus.Counter
	WindowsFailed    prometheus.Counter
	RecordsRejected  prometheus.Counter
	RefreshRunning   prometheus.Gauge
	RefreshDuration  prometheus.Histogram

	// Dataset metrics.
	DatasetRecords prometheus.Gauge

	// Derived-view cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	// Sink metrics.
	DetectionsPublished prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "fetch_requests_total",
			Help:      "FIRMS window fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "fetch_duration_seconds",
			Help:      "FIRMS window fetch duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		WindowsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "windows_completed_total",
			Help:      "Acquisition windows fetched and merged successfully.",
		}),
		WindowsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "windows_failed_total",
			Help:      "Acquisition windows abandoned after exhausting retries.",
		}),
		RecordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "records_rejected_total",
			Help:      "Records dropped at ingestion for failing validation.",
		}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "firewatch",
			Name:      "refresh_running",
			Help:      "1 while a refresh or historical load is in flight.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete acquire-merge-store cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		DatasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "firewatch",
			Name:      "dataset_records",
			Help:      "Records held in the live dataset snapshot.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "cache_lookups_total",
			Help:      "Derived-view cache lookups by result.",
		}, []string{"result"}),
		DetectionsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "detections_published_total",
			Help:      "Newly ingested detections published to the sink topic.",
		}),
	}

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.WindowsCompleted,
		m.WindowsFailed,
		m.RecordsRejected,
		m.RefreshRunning,
		m.RefreshDuration,
		m.DatasetRecords,
		m.CacheLookups,
		m.DetectionsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FetchRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "firewatch", Name: "fetch_requests_total"}, []string{"source", "outcome"}),
		FetchDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "firewatch", Name: "fetch_duration_seconds"}, []string{"source"}),
		WindowsCompleted:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "firewatch", Name: "windows_completed_total"}),
		WindowsFailed:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "firewatch", Name: "windows_failed_total"}),
		RecordsRejected:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "firewatch", Name: "records_rejected_total"}),
		RefreshRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "firewatch", Name: "refresh_running"}),
		RefreshDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "firewatch", Name: "refresh_duration_seconds"}),
		DatasetRecords:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "firewatch", Name: "dataset_records"}),
		CacheLookups:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "firewatch", Name: "cache_lookups_total"}, []string{"result"}),
		DetectionsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "firewatch", Name: "detections_published_total"}),
	}
}
