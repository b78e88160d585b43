// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package metrics defines the Prometheus collectors for the service:
// query outcomes and latency, incremental refresh activity, MediaWiki
// provider calls and circuit breaker state, in-memory store size, and
// HTTP request instrumentation. Collectors are registered at import time
// via promauto and exposed on /metrics by the API router.
package metrics
