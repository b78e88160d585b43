// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package similarity

import (
	"sort"
	"sync"

	"github.com/wikimedia/similarusers/internal/models"
)

// CoeditIndex maps each user to their neighbour list: other editors ranked by
// the number of pages both have edited.
//
// Entries are kept sorted descending by overlap count and truncated to a
// bounded size. Trailing entries that tie with the count at the bound are
// retained, so the effective length can exceed the nominal limit. Increments
// may be batched: an entry is only re-sorted when it is next read or when
// Rebalance is called explicitly.
type CoeditIndex struct {
	mu      sync.RWMutex
	entries map[string][]models.Neighbour
	dirty   map[string]struct{}
	limit   int
}

// NewCoeditIndex creates an empty index with the given truncation bound.
func NewCoeditIndex(limit int) *CoeditIndex {
	if limit < 1 {
		limit = 250
	}
	return &CoeditIndex{
		entries: make(map[string][]models.Neighbour),
		dirty:   make(map[string]struct{}),
		limit:   limit,
	}
}

// Lookup returns a copy of the user's neighbour list, sorted descending by
// overlap count and truncated. Unknown users yield an empty list.
func (c *CoeditIndex) Lookup(user string) []models.Neighbour {
	c.mu.RLock()
	if _, isDirty := c.dirty[user]; !isDirty {
		out := append([]models.Neighbour(nil), c.entries[user]...)
		c.mu.RUnlock()
		return out
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebalanceLocked(user)
	return append([]models.Neighbour(nil), c.entries[user]...)
}

// Increment adds delta to the user's overlap count for neighbour, inserting
// the neighbour with count delta when absent. The entry is left unsorted
// until the next Lookup or Rebalance.
func (c *CoeditIndex) Increment(user, neighbour string, delta int) {
	if delta <= 0 || user == neighbour {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[user]
	for i := range entry {
		if entry[i].UserText == neighbour {
			entry[i].Overlap += delta
			c.dirty[user] = struct{}{}
			return
		}
	}
	c.entries[user] = append(entry, models.Neighbour{UserText: neighbour, Overlap: delta})
	c.dirty[user] = struct{}{}
}

// Rebalance re-sorts and truncates the given users' entries immediately.
// Called at the end of a refresh for every entry the refresh touched.
func (c *CoeditIndex) Rebalance(users ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range users {
		c.rebalanceLocked(u)
	}
}

// Seed replaces the user's entry wholesale during bulk load. The slice is
// taken over by the index.
func (c *CoeditIndex) Seed(user string, neighbours []models.Neighbour) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[user] = neighbours
	c.dirty[user] = struct{}{}
	c.rebalanceLocked(user)
}

// Len reports the number of users with an entry.
func (c *CoeditIndex) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// rebalanceLocked sorts the user's entry descending by overlap (ties broken
// by user text for determinism) and truncates past the bound, keeping
// trailing count-ties. Must be called with mu held for writing.
func (c *CoeditIndex) rebalanceLocked(user string) {
	delete(c.dirty, user)
	entry := c.entries[user]
	if entry == nil {
		return
	}

	sort.Slice(entry, func(i, j int) bool {
		if entry[i].Overlap != entry[j].Overlap {
			return entry[i].Overlap > entry[j].Overlap
		}
		return entry[i].UserText < entry[j].UserText
	})

	if len(entry) > c.limit {
		cutCount := entry[c.limit-1].Overlap
		cut := c.limit
		for cut < len(entry) && entry[cut].Overlap == cutCount {
			cut++
		}
		entry = entry[:cut:cut]
	}

	c.entries[user] = entry
}
