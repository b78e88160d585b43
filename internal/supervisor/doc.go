// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package supervisor runs the service's long-lived components under a suture
// supervision tree with restart-with-backoff semantics and context-driven
// shutdown.
package supervisor
