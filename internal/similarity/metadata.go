// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package similarity

import (
	"sync"

	"github.com/wikimedia/similarusers/internal/models"
)

// MetadataStore holds the per-user summary records plus a per-user set of
// observed page IDs used for exact distinct-page counting across refreshes.
//
// The page sets are seeded from the snapshot's page->editors side index, so
// a page the user edited within the retained history is not recounted when
// they edit it again after the cutoff.
type MetadataStore struct {
	mu    sync.RWMutex
	users map[string]*models.UserMetadata
	pages map[string]map[int64]struct{}
}

// NewMetadataStore creates an empty metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		users: make(map[string]*models.UserMetadata),
		pages: make(map[string]map[int64]struct{}),
	}
}

// Get returns a copy of the user's metadata record.
func (m *MetadataStore) Get(user string) (models.UserMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[user]
	if !ok {
		return models.UserMetadata{}, false
	}
	return *rec, true
}

// Merge folds newly observed edits into the user's record, creating it when
// absent.
//
// NumEdits grows by len(edits). NumPages grows by the number of edit pages
// not previously observed for this user. LatestEdit widens forward to the
// newest edit timestamp. EarliestEdit is established by historical bulk data
// and never moves on an existing record; a freshly created record seeds it
// from the edits themselves.
func (m *MetadataStore) Merge(user models.UserKey, edits []models.Edit) {
	if len(edits) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := m.pages[user.Text]
	if seen == nil {
		seen = make(map[int64]struct{})
		m.pages[user.Text] = seen
	}
	newPages := 0
	for _, e := range edits {
		if _, ok := seen[e.PageID]; !ok {
			seen[e.PageID] = struct{}{}
			newPages++
		}
	}

	minTS := edits[0].Timestamp
	maxTS := edits[0].Timestamp
	for _, e := range edits[1:] {
		if e.Timestamp.Before(minTS) {
			minTS = e.Timestamp
		}
		if e.Timestamp.After(maxTS) {
			maxTS = e.Timestamp
		}
	}

	rec, ok := m.users[user.Text]
	if !ok {
		m.users[user.Text] = &models.UserMetadata{
			UserText:     user.Text,
			IsAnon:       user.IsAnon,
			NumEdits:     len(edits),
			NumPages:     newPages,
			EarliestEdit: minTS,
			LatestEdit:   maxTS,
		}
		return
	}

	rec.NumEdits += len(edits)
	rec.NumPages += newPages
	if maxTS.After(rec.LatestEdit) {
		rec.LatestEdit = maxTS
	}
	if rec.EarliestEdit.IsZero() {
		rec.EarliestEdit = minTS
	}
}

// Seed installs a record during bulk load, replacing any existing one.
func (m *MetadataStore) Seed(rec models.UserMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := rec
	m.users[rec.UserText] = &cp
}

// SeedPage marks a page as already observed for the user during bulk load.
func (m *MetadataStore) SeedPage(user string, pageID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := m.pages[user]
	if seen == nil {
		seen = make(map[int64]struct{})
		m.pages[user] = seen
	}
	seen[pageID] = struct{}{}
}

// Len reports the number of users with a metadata record.
func (m *MetadataStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
