// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package api provides the HTTP surface: the /similarusers query endpoint,
// health and metrics, and the operational dataset-refresh trigger. Routing
// uses Chi with CORS, per-IP rate limiting and request-ID propagation.
package api
