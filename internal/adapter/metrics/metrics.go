// Package metrics defines the Prometheus collectors for index builds and
// searches. Commands are short-lived, so instead of serving a scrape
// endpoint the registry is written to a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes used as the status label of QueriesTotal.
const (
	StatusOK        = "ok"
	StatusEmpty     = "empty"
	StatusParse     = "parse_error"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal        *prometheus.CounterVec
	QueryDuration       prometheus.Histogram
	QueryResults        prometheus.Histogram
	DocumentsIndexed    prometheus.Counter
	BuildDuration       prometheus.Histogram
	CommitsTotal        *prometheus.CounterVec
	PostingsCacheHits   prometheus.Counter
	PostingsCacheMisses prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranker_queries_total",
				Help: "Queries evaluated, by outcome (ok, empty, parse_error, cancelled, error).",
			},
			[]string{"status"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranker_query_duration_seconds",
				Help:    "Time to parse, score and rank one query.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
		),
		QueryResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranker_query_results",
				Help:    "Number of ranked results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		DocumentsIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ranker_documents_indexed_total",
				Help: "Documents added to committed snapshots.",
			},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranker_build_duration_seconds",
				Help:    "Wall time of build-index runs.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		CommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranker_commits_total",
				Help: "Snapshot commits by status.",
			},
			[]string{"status"},
		),
		PostingsCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ranker_postings_cache_hits_total",
				Help: "Decoded postings served from the snapshot cache.",
			},
		),
		PostingsCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ranker_postings_cache_misses_total",
				Help: "Postings lookups that had to decode from the snapshot file.",
			},
		),
	}

	m.registry.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.QueryResults,
		m.DocumentsIndexed,
		m.BuildDuration,
		m.CommitsTotal,
		m.PostingsCacheHits,
		m.PostingsCacheMisses,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveQuery(status string, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(status).Inc()
	m.QueryDuration.Observe(elapsed.Seconds())
	if status == StatusOK || status == StatusEmpty {
		m.QueryResults.Observe(float64(results))
	}
}

func (m *Metrics) ObserveBuild(documents int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		m.DocumentsIndexed.Add(float64(documents))
	}
	m.CommitsTotal.WithLabelValues(status).Inc()
	m.BuildDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCache(hits, misses uint64) {
	if m == nil {
		return
	}
	m.PostingsCacheHits.Add(float64(hits))
	m.PostingsCacheMisses.Add(float64(misses))
}

// WriteTextfile writes the registry in text exposition format, replacing
// path atomically. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
