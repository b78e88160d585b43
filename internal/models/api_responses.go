// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package models

import "time"

// APIResponse is the standard envelope for all HTTP responses.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError describes a failed request in a machine-readable way.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TemporalOverlap is the qualitative temporal similarity between two editors
// on one axis (day-of-week or hour-of-day).
type TemporalOverlap struct {
	CosSim float64 `json:"cos-sim"`
	Level  string  `json:"level"`
}

// FollowUp holds links to external investigation tools for a user pair.
type FollowUp struct {
	Similar             string `json:"similar"`
	EditorInteract      string `json:"editorinteract"`
	InteractionTimeline string `json:"interaction-timeline"`
}

// ScoredNeighbour is one ranked result: a neighbour of the queried user with
// overlap ratios and temporal similarity. Field names mirror the public API
// of the service, hyphens included.
type ScoredNeighbour struct {
	UserText           string          `json:"user_text"`
	NumEditsInData     int             `json:"num_edits_in_data"`
	EditOverlap        float64         `json:"edit-overlap"`
	InverseEditOverlap float64         `json:"edit-overlap-inv"`
	DayOverlap         TemporalOverlap `json:"day-overlap"`
	HourOverlap        TemporalOverlap `json:"hour-overlap"`
	FollowUp           *FollowUp       `json:"follow-up,omitempty"`
}

// SimilarUsersResult is the top-level document for one query: the queried
// user's own coverage in the data plus the ranked neighbour list.
type SimilarUsersResult struct {
	UserText        string            `json:"user_text"`
	NumEditsInData  int               `json:"num_edits_in_data"`
	FirstEditInData *time.Time        `json:"first_edit_in_data"`
	LastEditInData  *time.Time        `json:"last_edit_in_data"`
	Results         []ScoredNeighbour `json:"results"`
}
