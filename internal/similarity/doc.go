// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package similarity implements the in-memory editor-similarity engine: the
// co-edit index, temporal vector model, user metadata store, page-editor side
// index, staleness-driven incremental updater and the ranker that assembles
// query results from them.
//
// All datasets live in a single Store and are safe for concurrent use. A
// per-user mutex serializes refreshes of the same user while leaving queries
// and refreshes of other users unblocked; dataset-level locks are only held
// for short critical sections, never across provider calls.
package similarity
