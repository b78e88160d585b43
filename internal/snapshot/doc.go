// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package snapshot persists the bulk-exported similarity datasets in DuckDB
// and seeds the in-memory engine from them. Exported TSV files are ingested
// as generations: a new dataset_id per ingest, activated atomically, with
// older generations pruned on activation.
package snapshot
