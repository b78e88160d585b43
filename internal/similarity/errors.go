// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package similarity

import "errors"

var (
	// ErrNotFound indicates the user has zero edits in the dataset: never
	// observed in bulk data and the provider found nothing either.
	ErrNotFound = errors.New("user has no edits in scope")

	// ErrBotUser indicates the queried account is a bot and out of scope.
	ErrBotUser = errors.New("user is a bot account")

	// ErrInvalidArgument indicates unusable query input, e.g. empty user text.
	ErrInvalidArgument = errors.New("invalid query argument")

	// ErrReloadInProgress indicates a snapshot reload is replacing the
	// in-memory datasets; queries are rejected until it completes.
	ErrReloadInProgress = errors.New("dataset reload in progress")
)
