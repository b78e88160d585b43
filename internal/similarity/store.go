// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package similarity

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wikimedia/similarusers/internal/metrics"
)

// Store owns the four in-memory datasets of the similarity engine: the
// co-edit index, the metadata store, the sparse temporal observations and the
// page->editors side index.
//
// Lifecycle: bulk-loaded at startup from a snapshot, mutated in place by
// incremental refreshes during the process lifetime, and replaced wholesale
// by the next scheduled snapshot reload. Mutations are not persisted back in
// real time.
//
// Concurrency: each dataset guards itself with its own RWMutex, so readers
// never observe a torn individual record. Multi-step refreshes for the same
// user are serialized through per-user mutexes (LockUser); refreshes of
// unrelated users and all pure reads proceed concurrently.
type Store struct {
	Coedit   *CoeditIndex
	Metadata *MetadataStore
	Temporal *TemporalIndex
	Pages    *PageIndex

	// userLocks holds one *sync.Mutex per user text, created on demand.
	userLocks sync.Map

	mu        sync.RWMutex
	cutoff    time.Time
	datasetID int64

	// opGate is held for reading by every query and refresh, and for
	// writing by a snapshot reload. The write acquisition in BeginReload
	// is what drains in-flight work before Reset swaps the datasets.
	opGate    sync.RWMutex
	reloading atomic.Bool
}

// NewStore creates an empty store with the given co-edit truncation bound
// and fallback snapshot cutoff.
func NewStore(coeditLimit int, cutoff time.Time) *Store {
	return &Store{
		Coedit:   NewCoeditIndex(coeditLimit),
		Metadata: NewMetadataStore(),
		Temporal: NewTemporalIndex(),
		Pages:    NewPageIndex(),
		cutoff:   cutoff,
	}
}

// LockUser acquires the per-user mutex and returns its unlock function.
//
//	defer store.LockUser(userText)()
func (s *Store) LockUser(user string) func() {
	muAny, _ := s.userLocks.LoadOrStore(user, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// GlobalCutoff returns the snapshot freshness boundary: the point in time up
// to which the bulk-loaded data is complete.
func (s *Store) GlobalCutoff() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cutoff
}

// SetGlobalCutoff records the cutoff of the loaded snapshot.
func (s *Store) SetGlobalCutoff(ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoff = ts
}

// DatasetID returns the identifier of the loaded snapshot generation.
func (s *Store) DatasetID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.datasetID
}

// SetDatasetID records the loaded snapshot generation.
func (s *Store) SetDatasetID(id int64) {
	s.mu.Lock()
	s.datasetID = id
	s.mu.Unlock()
	metrics.StoreDatasetID.Set(float64(id))
}

// BeginOp registers a query or refresh against the current datasets and
// returns its release function. Returns false while a snapshot reload is
// replacing the data; callers fail fast rather than read or write a
// half-replaced store. The release must be called exactly once.
func (s *Store) BeginOp() (func(), bool) {
	if s.reloading.Load() {
		return nil, false
	}
	s.opGate.RLock()
	// A reload may have flipped the gate between the check and the RLock;
	// it is now waiting for us to drain, so back out.
	if s.reloading.Load() {
		s.opGate.RUnlock()
		return nil, false
	}
	return s.opGate.RUnlock, true
}

// Reset replaces the datasets with fresh empty ones ahead of a snapshot
// reload. Callers must have acquired the reload gate via BeginReload so no
// query or refresh is in flight against the half-replaced store.
func (s *Store) Reset(coeditLimit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Coedit = NewCoeditIndex(coeditLimit)
	s.Metadata = NewMetadataStore()
	s.Temporal = NewTemporalIndex()
	s.Pages = NewPageIndex()
	s.userLocks = sync.Map{}
}

// BeginReload marks the store as being replaced by a snapshot reload and
// blocks until every in-flight query and refresh has drained. New work is
// rejected by BeginOp from the moment the flag flips, so the drain is
// bounded by the slowest operation already running. Returns false if a
// reload is already in progress.
func (s *Store) BeginReload() bool {
	if !s.reloading.CompareAndSwap(false, true) {
		return false
	}
	s.opGate.Lock()
	return true
}

// EndReload clears the reload gate. Must only be called after a successful
// BeginReload.
func (s *Store) EndReload() {
	s.reloading.Store(false)
	s.opGate.Unlock()
}

// ReloadInProgress reports whether a snapshot reload is replacing the data.
// Queries abort rather than read a half-replaced dataset.
func (s *Store) ReloadInProgress() bool {
	return s.reloading.Load()
}
