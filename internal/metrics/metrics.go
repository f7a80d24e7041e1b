// Package metrics exposes Prometheus collectors for the hygiene service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	hygieneRunsTotal           *prometheus.CounterVec
	hygieneProcessedTotal      *prometheus.CounterVec
	hygieneLockContentionTotal prometheus.Counter
	probeDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		hygieneRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hygiene_runs_total",
				Help: "Total hygiene worker runs, labeled by task and outcome.",
			},
			[]string{"task", "outcome"},
		)

		hygieneProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hygiene_records_processed_total",
				Help: "Total records mutated by hygiene passes, labeled by task.",
			},
			[]string{"task"},
		)

		hygieneLockContentionTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hygiene_lock_contention_total",
				Help: "Total runs rejected because the worker lock was held.",
			},
		)

		probeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hygiene_probe_duration_seconds",
				Help:    "Histogram of URL probe latencies, labeled by success.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"ok"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// RecordRun counts one completed worker run.
func RecordRun(task, outcome string) {
	if hygieneRunsTotal == nil {
		return
	}
	hygieneRunsTotal.WithLabelValues(task, outcome).Inc()
}

// AddProcessed counts records mutated by a run.
func AddProcessed(task string, n int) {
	if hygieneProcessedTotal == nil || n <= 0 {
		return
	}
	hygieneProcessedTotal.WithLabelValues(task).Add(float64(n))
}

// RecordLockContention counts a run rejected on a held lock.
func RecordLockContention() {
	if hygieneLockContentionTotal == nil {
		return
	}
	hygieneLockContentionTotal.Inc()
}

// ObserveProbe records one URL probe's latency.
func ObserveProbe(d time.Duration, ok bool) {
	if probeDurationSeconds == nil {
		return
	}
	probeDurationSeconds.WithLabelValues(strconv.FormatBool(ok)).Observe(d.Seconds())
}

// ObserveHTTPRequest records an inbound request for the middleware.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
