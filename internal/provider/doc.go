// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package provider implements the external edit provider backed by the
// MediaWiki Action API: per-user contribution listings with continuation,
// account classification, client-side rate limiting, bounded retries and a
// circuit breaker for sustained upstream failure.
package provider
