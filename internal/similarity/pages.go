// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package similarity

import (
	"sync"
	"time"
)

// PageIndex is the page -> recent-editors side index used to find co-editors
// of a page without re-querying the provider. It is populated by the bulk
// snapshot load (pages edited within the retained history window) and
// extended by every refresh.
type PageIndex struct {
	mu      sync.RWMutex
	editors map[int64]map[string]time.Time
}

// NewPageIndex creates an empty page index.
func NewPageIndex() *PageIndex {
	return &PageIndex{editors: make(map[int64]map[string]time.Time)}
}

// Editors returns the users known to have edited the page, excluding the
// given user.
func (p *PageIndex) Editors(pageID int64, excluding string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.editors[pageID]))
	for u := range p.editors[pageID] {
		if u != excluding {
			out = append(out, u)
		}
	}
	return out
}

// HasEditor reports whether the user is already recorded as an editor of the
// page. Used to avoid recounting a (user, page) pairing across refreshes.
func (p *PageIndex) HasEditor(pageID int64, user string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.editors[pageID][user]
	return ok
}

// Record notes that user edited the page at ts, keeping the most recent
// timestamp per editor.
func (p *PageIndex) Record(pageID int64, user string, ts time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pageEditors := p.editors[pageID]
	if pageEditors == nil {
		pageEditors = make(map[string]time.Time)
		p.editors[pageID] = pageEditors
	}
	if prev, ok := pageEditors[user]; !ok || ts.After(prev) {
		pageEditors[user] = ts
	}
}

// Len reports the number of pages tracked.
func (p *PageIndex) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.editors)
}
