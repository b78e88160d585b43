// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package provider

import "errors"

// Provider failure taxonomy. Callers branch on these to decide between
// degrading to cached data and failing the request.
var (
	// ErrUnreachable covers network failures, timeouts and 5xx responses.
	ErrUnreachable = errors.New("provider unreachable")

	// ErrMalformed covers responses that are not the expected JSON shape.
	ErrMalformed = errors.New("provider response malformed")

	// ErrRateLimited means the retry budget was exhausted on HTTP 429.
	ErrRateLimited = errors.New("provider rate limited")
)

// apiResponse is the subset of the MediaWiki Action API envelope this client
// consumes.
type apiResponse struct {
	Error    *apiError `json:"error"`
	Continue struct {
		UcContinue string `json:"uccontinue"`
		RvContinue string `json:"rvcontinue"`
	} `json:"continue"`
	Query struct {
		UserContribs []apiContrib `json:"usercontribs"`
		Users        []apiUser    `json:"users"`
		Pages        []apiPage    `json:"pages"`
	} `json:"query"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// apiContrib is one revision from list=usercontribs.
type apiContrib struct {
	PageID    int64  `json:"pageid"`
	NS        int    `json:"ns"`
	Timestamp string `json:"timestamp"`
}

// apiPage is one page from prop=revisions. Missing marks a page ID the wiki
// does not know.
type apiPage struct {
	PageID    int64         `json:"pageid"`
	Missing   bool          `json:"missing"`
	Revisions []apiRevision `json:"revisions"`
}

// apiRevision is one revision from prop=revisions. User is absent when the
// revision's author is suppressed.
type apiRevision struct {
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
}

// apiUser is one entry from list=users (formatversion=2). Invalid marks a
// name that cannot be an account, which is how the API reports IP (anonymous)
// editors.
type apiUser struct {
	Name    string   `json:"name"`
	Missing bool     `json:"missing"`
	Invalid bool     `json:"invalid"`
	Groups  []string `json:"groups"`
}
