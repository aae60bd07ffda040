// Package metrics exposes Prometheus collectors for the tracking service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Aggregation outcomes recorded by ObserveAggregation.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
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

	aggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabtrack_aggregations_total",
			Help: "Total aggregation runs, labeled by operation and result.",
		},
		[]string{"operation", "result"},
	)

	aggregationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fabtrack_aggregation_duration_seconds",
			Help:    "Wall time per aggregation including store fetches, labeled by operation.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation"},
	)

	entriesLoggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabtrack_entries_logged_total",
			Help: "Progress entries accepted, labeled by stage.",
		},
		[]string{"stage"},
	)

	quantityLoggedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fabtrack_quantity_logged_total",
			Help: "Sum of quantity completed across accepted progress entries.",
		},
	)

	reportsExportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabtrack_reports_exported_total",
			Help: "Project reports written to blob storage, labeled by result.",
		},
		[]string{"result"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabtrack_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter, labeled by route.",
		},
		[]string{"route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveAggregation records one aggregation run and its duration.
func ObserveAggregation(operation string, err error, duration time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	aggregationsTotal.WithLabelValues(operation, result).Inc()
	aggregationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveEntryLogged increments the entry counters for an accepted entry.
func ObserveEntryLogged(stageID string, quantity int) {
	if stageID == "" {
		stageID = "unknown"
	}
	entriesLoggedTotal.WithLabelValues(stageID).Inc()
	if quantity > 0 {
		quantityLoggedTotal.Add(float64(quantity))
	}
}

// ObserveReportExport increments the report export counter.
func ObserveReportExport(err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	reportsExportedTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimited increments the rejected request counter.
func ObserveRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(route).Inc()
}
