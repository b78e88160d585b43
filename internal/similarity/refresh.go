// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package similarity

import (
	"context"
	"fmt"
	"time"

	"github.com/wikimedia/similarusers/internal/logging"
	"github.com/wikimedia/similarusers/internal/metrics"
	"github.com/wikimedia/similarusers/internal/models"
)

// EditProvider is the external edit-history source consumed by the updater.
// Implementations must return only edits strictly after since; that contract
// is what keeps re-running a refresh from double-counting.
type EditProvider interface {
	// FetchEdits lists the user's edits after since within the namespaces.
	FetchEdits(ctx context.Context, user models.UserKey, since time.Time, namespaces []int) ([]models.Edit, error)

	// FetchPageEditors lists a page's revisions strictly after since, in
	// chronological order. Revisions by hidden users are omitted.
	FetchPageEditors(ctx context.Context, pageID int64, since time.Time) ([]models.PageRevision, error)

	// CheckUser classifies a user text not present in the dataset.
	CheckUser(ctx context.Context, userText string) (models.UserStatus, error)

	// CheckUsers classifies a batch of user texts in as few provider
	// calls as possible. The result maps each input to its status.
	CheckUsers(ctx context.Context, userTexts []string) (map[string]models.UserStatus, error)
}

// Refresher detects stale cached users and folds their newly observed edits
// into the store: co-edit counts, temporal observations and metadata.
//
// The provider fetches (the only slow steps) run while holding only the
// per-user mutex, never a dataset lock; dataset locks are taken briefly by
// the individual merge operations.
type Refresher struct {
	store      *Store
	provider   EditProvider
	namespaces []int
	maxPages   int
}

// NewRefresher wires a refresher to its store and provider.
func NewRefresher(store *Store, provider EditProvider, namespaces []int, maxPages int) *Refresher {
	if maxPages < 1 {
		maxPages = 50
	}
	return &Refresher{
		store:      store,
		provider:   provider,
		namespaces: namespaces,
		maxPages:   maxPages,
	}
}

// IsStale reports whether the user's cached data may be behind real time at
// now. Unknown users are always stale. Known users are stale once the
// snapshot cutoff has passed: the user might have edited since the bulk data
// was exported.
func (r *Refresher) IsStale(user string, now time.Time) bool {
	if _, known := r.store.Metadata.Get(user); !known {
		return true
	}
	return now.After(r.store.GlobalCutoff())
}

// fetchSince computes the boundary for the provider fetch: edits strictly
// after max(latest known edit, snapshot cutoff) are missing from the cache.
func (r *Refresher) fetchSince(user string) time.Time {
	since := r.store.GlobalCutoff()
	if meta, ok := r.store.Metadata.Get(user); ok && meta.LatestEdit.After(since) {
		since = meta.LatestEdit
	}
	return since
}

// Refresh fetches the user's edits since the cache boundary and folds them
// into the store. Returns the number of edits folded, or
// ErrReloadInProgress while a snapshot reload is replacing the datasets.
func (r *Refresher) Refresh(ctx context.Context, user models.UserKey) (int, error) {
	done, ok := r.store.BeginOp()
	if !ok {
		return 0, ErrReloadInProgress
	}
	defer done()
	return r.refresh(ctx, user)
}

// refresh is the ungated refresh body. Callers must hold the store's
// operation gate via BeginOp.
//
// Distinct pages processed per refresh are capped; excess pages are dropped
// in provider-return order, trading completeness for bounded latency.
//
// On provider failure the refresh is abandoned and the error returned; the
// caller serves whatever cached data exists. A refresh that fetches zero
// edits creates no records for a previously unknown user.
func (r *Refresher) refresh(ctx context.Context, user models.UserKey) (int, error) {
	defer r.store.LockUser(user.Text)()

	start := time.Now()
	since := r.fetchSince(user.Text)

	edits, err := r.provider.FetchEdits(ctx, user, since, r.namespaces)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("provider_error").Inc()
		return 0, fmt.Errorf("fetching edits for %s: %w", user.Text, err)
	}
	if len(edits) == 0 {
		metrics.RefreshesTotal.WithLabelValues("noop").Inc()
		return 0, nil
	}

	kept := r.capPages(edits)
	coeditors := r.discoverCoeditors(ctx, user, kept)
	r.fold(user, kept, coeditors)

	metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	metrics.RefreshEditsFolded.Add(float64(len(kept)))
	metrics.StoreUsers.Set(float64(r.store.Metadata.Len()))

	logging.Ctx(ctx).Debug().
		Str("user", user.Text).
		Int("edits", len(kept)).
		Time("since", since).
		Msg("Folded new edits")

	return len(kept), nil
}

// capPages drops edits beyond the distinct-page cap, keeping pages in
// provider-return order.
func (r *Refresher) capPages(edits []models.Edit) []models.Edit {
	pages := make(map[int64]struct{})
	kept := edits[:0:0]
	capped := false
	for _, e := range edits {
		if _, ok := pages[e.PageID]; !ok {
			if len(pages) >= r.maxPages {
				capped = true
				continue
			}
			pages[e.PageID] = struct{}{}
		}
		kept = append(kept, e)
	}
	if capped {
		metrics.RefreshPagesCapped.Inc()
	}
	return kept
}

// discoverCoeditors fetches post-cutoff revision history for the pages the
// user has not been counted on yet, so co-editors who are absent from the
// snapshot and were never themselves refreshed still show up. Bots among
// the discovered editors are removed through a batch account check.
//
// Discovery is best-effort: a failed page or classification fetch degrades
// to whatever the side index already knows rather than failing the refresh.
func (r *Refresher) discoverCoeditors(ctx context.Context, user models.UserKey, edits []models.Edit) map[int64][]models.PageRevision {
	cutoff := r.store.GlobalCutoff()
	discovered := make(map[int64][]models.PageRevision)
	candidates := make(map[string]struct{})

	seen := make(map[int64]struct{})
	for _, e := range edits {
		if _, ok := seen[e.PageID]; ok {
			continue
		}
		seen[e.PageID] = struct{}{}
		// Pages the user is already counted on keep their recorded
		// history; refetching them would recount the same pairs.
		if r.store.Pages.HasEditor(e.PageID, user.Text) {
			continue
		}

		revs, err := r.provider.FetchPageEditors(ctx, e.PageID, cutoff)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Int64("page", e.PageID).
				Msg("Co-editor discovery failed, using side index only")
			continue
		}
		for _, rev := range revs {
			if rev.UserText == "" || rev.UserText == user.Text {
				continue
			}
			discovered[e.PageID] = append(discovered[e.PageID], rev)
			if _, known := r.store.Metadata.Get(rev.UserText); !known {
				candidates[rev.UserText] = struct{}{}
			}
		}
	}

	if len(candidates) == 0 {
		return discovered
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	statuses, err := r.provider.CheckUsers(ctx, names)
	if err != nil {
		// Unclassifiable editors are dropped: admitting a bot into the
		// co-edit index is worse than missing a human co-editor once.
		logging.Ctx(ctx).Warn().Err(err).
			Int("editors", len(names)).
			Msg("Co-editor classification failed, dropping unknown editors")
		statuses = nil
	}
	for pageID, revs := range discovered {
		kept := revs[:0]
		for _, rev := range revs {
			if _, known := r.store.Metadata.Get(rev.UserText); known {
				kept = append(kept, rev)
				continue
			}
			status, classified := statuses[rev.UserText]
			if !classified || status == models.UserStatusBot {
				continue
			}
			kept = append(kept, rev)
		}
		discovered[pageID] = kept
	}
	return discovered
}

// fold merges the fetched edits into all four datasets. Runs under the
// per-user mutex; each dataset takes its own short write lock. coeditors
// holds the live-discovered revision history per page, recorded into the
// side index before the page's co-edit pairs are counted.
func (r *Refresher) fold(user models.UserKey, edits []models.Edit, coeditors map[int64][]models.PageRevision) {
	touched := map[string]struct{}{user.Text: {}}

	// Group edits by page, preserving first-seen order.
	pageOrder := make([]int64, 0, len(edits))
	pageLatest := make(map[int64]time.Time)
	for _, e := range edits {
		if _, ok := pageLatest[e.PageID]; !ok {
			pageOrder = append(pageOrder, e.PageID)
			pageLatest[e.PageID] = e.Timestamp
		} else if e.Timestamp.After(pageLatest[e.PageID]) {
			pageLatest[e.PageID] = e.Timestamp
		}
	}

	for _, pageID := range pageOrder {
		// A page the user already appears on has had its co-editor pairs
		// counted; recounting it would inflate overlaps across refreshes.
		if !r.store.Pages.HasEditor(pageID, user.Text) {
			for _, rev := range coeditors[pageID] {
				r.store.Pages.Record(pageID, rev.UserText, rev.Timestamp)
			}
			for _, coeditor := range r.store.Pages.Editors(pageID, user.Text) {
				r.store.Coedit.Increment(user.Text, coeditor, 1)
				r.store.Coedit.Increment(coeditor, user.Text, 1)
				touched[coeditor] = struct{}{}
			}
		}
		r.store.Pages.Record(pageID, user.Text, pageLatest[pageID])
	}

	r.store.Metadata.Merge(user, edits)

	for _, e := range edits {
		ts := e.Timestamp.UTC()
		r.store.Temporal.Fold(user.Text, int(ts.Weekday()), ts.Hour(), 1)
	}

	users := make([]string, 0, len(touched))
	for u := range touched {
		users = append(users, u)
	}
	r.store.Coedit.Rebalance(users...)
}
