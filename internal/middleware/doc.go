// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package middleware provides HTTP middleware shared by the API router:
// request-ID propagation and Prometheus request instrumentation. Middleware
// here uses the http.HandlerFunc form and is adapted to Chi via the router's
// small wrapper.
package middleware
