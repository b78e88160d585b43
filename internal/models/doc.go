// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

// Package models defines the shared data types for the similar-users service.
//
// The types here fall into three groups:
//
//   - Identity and history: UserKey, UserMetadata, Edit. These describe a
//     Wikipedia editor (registered account or anonymous IP) and their edit
//     history as observed from the bulk snapshot and the live MediaWiki API.
//   - Similarity data: Neighbour, TemporalObservation, DenseTemporalVector.
//     These back the in-memory co-edit index and temporal activity profiles.
//   - API shapes: SimilarUsersResult, ScoredNeighbour, APIResponse. These are
//     the JSON documents served by the HTTP layer.
//
// The package has no dependencies on other internal packages so that every
// layer (storage, provider, core engine, HTTP) can share it freely.
package models
