package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels a pipeline run.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeHalted Outcome = "halted"
	OutcomeError  Outcome = "error"
)

// Metrics collects Prometheus metrics for the tracker.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	rowsFetched     prometheus.Gauge
	rowsDropped     prometheus.Counter
	distinctItems   prometheus.Gauge
	lastSuccess     prometheus.Gauge
	rowStoreHealthy prometheus.Gauge
	rowStorePing    prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			runsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "items_tracker_pipeline_runs_total",
					Help: "Total number of pipeline runs by outcome",
				},
				[]string{"outcome"},
			),
			runDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "items_tracker_pipeline_run_duration_seconds",
					Help:    "Pipeline run duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
			),
			cacheLookups: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "items_tracker_query_cache_lookups_total",
					Help: "Query cache lookups by result",
				},
				[]string{"result"},
			),
			rowsFetched: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "items_tracker_rows_fetched",
					Help: "Rows returned by the last full-row query",
				},
			),
			rowsDropped: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "items_tracker_rows_dropped_total",
					Help: "Rows dropped during cleaning",
				},
			),
			distinctItems: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "items_tracker_distinct_items",
					Help: "Distinct items seen by the last run",
				},
			),
			lastSuccess: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "items_tracker_last_success_timestamp_seconds",
					Help: "Unix time of the last run that produced a table",
				},
			),
			rowStoreHealthy: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "items_tracker_rowstore_healthy",
					Help: "Row store health status (1 = healthy, 0 = unhealthy)",
				},
			),
			rowStorePing: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "items_tracker_rowstore_ping_seconds",
					Help:    "Row store ping latency in seconds",
					Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
				},
			),
		}
	})
	return metricsInst
}

// RecordRun records a finished pipeline run.
func (m *Metrics) RecordRun(outcome Outcome, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(outcome)).Inc()
	m.runDuration.Observe(duration.Seconds())
	if outcome == OutcomeOK {
		m.lastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordCacheLookup counts a query cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordTable records row counts of a cleaned table.
func (m *Metrics) RecordTable(fetched, dropped, items int) {
	if m == nil {
		return
	}
	m.rowsFetched.Set(float64(fetched))
	if dropped > 0 {
		m.rowsDropped.Add(float64(dropped))
	}
	m.distinctItems.Set(float64(items))
}

// UpdateRowStoreHealth records one ping result.
func (m *Metrics) UpdateRowStoreHealth(healthy bool, latency time.Duration) {
	if m == nil {
		return
	}
	m.rowStorePing.Observe(latency.Seconds())
	if healthy {
		m.rowStoreHealthy.Set(1)
	} else {
		m.rowStoreHealthy.Set(0)
	}
}
