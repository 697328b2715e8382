// Package metrics exposes Prometheus instrumentation for the storefront:
// product view tracking, the monthly rollup, catalog queries and HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// View outcomes.
const (
	ViewCounted   = "counted"
	ViewDuplicate = "duplicate"
	ViewError     = "error"
)

// Rollup outcomes.
const (
	RollupCreated  = "created"
	RollupExisting = "existing"
	RollupConflict = "conflict"
	RollupError    = "error"
)

var (
	ProductViews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_product_views_total",
			Help: "Product detail views seen by the view recorder, by outcome",
		},
		[]string{"outcome"}, // "counted", "duplicate", "error"
	)

	RollupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_monthly_rollup_runs_total",
			Help: "Monthly rollup invocations, by outcome",
		},
		[]string{"outcome"},
	)

	RollupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_monthly_rollup_duration_seconds",
			Help:    "Duration of monthly rollup invocations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_catalog_query_duration_seconds",
			Help:    "Duration of filtered catalog queries in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"scope", "sort"}, // scope: "all" or "collection"
	)

	ViewEventsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_view_events_pruned_total",
			Help: "View events removed by the retention pruner",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// RecordView counts a view recorder outcome.
func RecordView(outcome string) {
	ProductViews.WithLabelValues(outcome).Inc()
}

// RecordRollup counts a rollup outcome and observes its duration.
func RecordRollup(outcome string, duration time.Duration) {
	RollupRuns.WithLabelValues(outcome).Inc()
	RollupDuration.Observe(duration.Seconds())
}

// RecordCatalogQuery observes a catalog listing query.
func RecordCatalogQuery(scope, sort string, duration time.Duration) {
	if sort == "" {
		sort = "default"
	}
	CatalogQueryDuration.WithLabelValues(scope, sort).Observe(duration.Seconds())
}

// RecordHTTPRequest records request count and latency. route is the matched
// gin route template, never the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
