// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package models

import (
	"strings"
	"time"
	"unicode"
)

// UserKey identifies an editor: a normalized user text (registered username or
// anonymous IP string) plus an account-type flag. Equality and map hashing are
// on the normalized Text only; IsAnon is carried along for metadata seeding.
type UserKey struct {
	Text   string
	IsAnon bool
}

// NormalizeUserText canonicalizes raw user input the way MediaWiki renders
// user page titles: an optional "User:" prefix is stripped (case-insensitive),
// spaces become underscores, and the first rune is uppercased.
//
// Returns the empty string for input that is empty after stripping.
func NormalizeUserText(raw string) string {
	text := strings.TrimSpace(raw)
	if len(text) >= 5 && strings.EqualFold(text[:5], "user:") {
		text = text[5:]
	}
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, " ", "_")
	runes := []rune(text)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// UserMetadata is the per-user summary record.
//
// Invariants: EarliestEdit <= LatestEdit when both are set, and NumEdits >= 0.
// Counts only ever grow and the timestamp range only ever widens; records are
// never deleted during normal operation, only replaced wholesale by the next
// bulk snapshot.
type UserMetadata struct {
	UserText     string    `json:"user_text"`
	IsAnon       bool      `json:"is_anon"`
	NumEdits     int       `json:"num_edits"`
	NumPages     int       `json:"num_pages"`
	EarliestEdit time.Time `json:"earliest_edit"`
	LatestEdit   time.Time `json:"latest_edit"`
}

// Edit is a single revision observed from the edit provider. Edits are
// transient: they drive updates to the co-edit index, temporal observations
// and metadata, and are never stored as-is.
type Edit struct {
	User      UserKey
	PageID    int64
	Timestamp time.Time
	Namespace int
}

// PageRevision is one revision of a page as reported by the edit provider's
// per-page history: who edited and when. Used for co-editor discovery on
// pages edited after the snapshot cutoff.
type PageRevision struct {
	UserText  string
	Timestamp time.Time
}

// Neighbour is one entry of a co-edit index record: another editor and the
// number of pages both users have edited.
type Neighbour struct {
	UserText string
	Overlap  int
}

// UserStatus classifies a user looked up via the provider's account check.
type UserStatus int

const (
	// UserStatusMissing means no account and no anonymous contributions exist.
	UserStatusMissing UserStatus = iota

	// UserStatusAnon means the text is not a valid account name but has
	// contributions, i.e. an anonymous IP editor.
	UserStatusAnon

	// UserStatusRegistered means a regular registered account.
	UserStatusRegistered

	// UserStatusBot means the account is in the bot group and out of scope.
	UserStatusBot
)

// String returns the status name for logging.
func (s UserStatus) String() string {
	switch s {
	case UserStatusAnon:
		return "anon"
	case UserStatusRegistered:
		return "registered"
	case UserStatusBot:
		return "bot"
	default:
		return "missing"
	}
}
