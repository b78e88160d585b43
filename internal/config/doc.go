// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package config loads and validates service configuration using Koanf v2
// with layered sources: built-in defaults, an optional YAML file, then
// environment variables, highest priority last.
//
// The configuration record makes every engine constant explicit: temporal
// smoothing offsets, the namespace filter, the snapshot cutoff fallback, the
// per-refresh page cap and the provider retry budget. Components receive
// these at construction rather than reading globals.
package config
