// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query metrics

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "similar_users_queries_total",
			Help: "Total number of similar-users queries by outcome",
		},
		[]string{"outcome"}, // "ok", "not_found", "invalid", "refresh_in_progress"
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "similar_users_query_duration_seconds",
			Help:    "End-to-end similar-users query duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"},
	)

	QueryResultSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "similar_users_query_result_size",
			Help:    "Number of neighbours returned per query",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	// Refresh metrics

	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "similar_users_refreshes_total",
			Help: "Total number of incremental refresh attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "provider_error", "noop"
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "similar_users_refresh_duration_seconds",
			Help:    "Incremental refresh duration in seconds, provider fetch included",
			Buckets: prometheus.DefBuckets,
		},
	)

	RefreshEditsFolded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similar_users_refresh_edits_folded_total",
			Help: "Total number of new edits folded into the in-memory stores",
		},
	)

	RefreshPagesCapped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similar_users_refresh_pages_capped_total",
			Help: "Refreshes that hit the per-refresh distinct page cap",
		},
	)

	// Provider metrics

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediawiki_provider_requests_total",
			Help: "Total number of MediaWiki API requests by operation and status",
		},
		[]string{"operation", "status"}, // status: "success", "failure", "rejected"
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediawiki_provider_request_duration_seconds",
			Help:    "MediaWiki API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediawiki_provider_circuit_breaker_state",
			Help: "Circuit breaker state (0 = closed, 1 = half-open, 2 = open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediawiki_provider_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Store metrics

	StoreUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "similar_users_store_users",
			Help: "Number of users with metadata in the in-memory store",
		},
	)

	StoreDatasetID = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "similar_users_store_dataset_id",
			Help: "Identifier of the currently loaded snapshot generation",
		},
	)

	SnapshotLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "similar_users_snapshot_load_duration_seconds",
			Help:    "Bulk snapshot load duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordQuery records one similar-users query with its outcome.
func RecordQuery(outcome string, resultSize int, duration time.Duration) {
	QueriesTotal.WithLabelValues(outcome).Inc()
	QueryDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == "ok" {
		QueryResultSize.Observe(float64(resultSize))
	}
}

// RecordProviderRequest records one MediaWiki API call.
func RecordProviderRequest(operation, status string, duration time.Duration) {
	ProviderRequests.WithLabelValues(operation, status).Inc()
	ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
