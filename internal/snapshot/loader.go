// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wikimedia/similarusers/internal/logging"
	"github.com/wikimedia/similarusers/internal/metrics"
	"github.com/wikimedia/similarusers/internal/models"
	"github.com/wikimedia/similarusers/internal/similarity"
)

// Load seeds the in-memory store from the active generation: metadata
// records, co-edit neighbour lists, sparse temporal observations and the
// page->editors side index, plus the global cutoff and dataset id.
//
// Returns the loaded dataset id; 0 with no error when the database holds no
// active generation yet (fresh install before the first ingest).
func (s *Store) Load(ctx context.Context, store *similarity.Store) (int64, error) {
	start := time.Now()
	id, cutoff, err := s.ActiveDataset(ctx)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		logging.Warn().Msg("No active snapshot generation, starting with empty datasets")
		return 0, nil
	}

	users, err := s.loadMetadata(ctx, id, store)
	if err != nil {
		return 0, err
	}
	if err := s.loadCoedit(ctx, id, store); err != nil {
		return 0, err
	}
	if err := s.loadTemporal(ctx, id, store); err != nil {
		return 0, err
	}
	pages, err := s.loadPageEditors(ctx, id, store)
	if err != nil {
		return 0, err
	}

	store.SetGlobalCutoff(cutoff)
	store.SetDatasetID(id)
	metrics.StoreUsers.Set(float64(store.Metadata.Len()))
	metrics.SnapshotLoadDuration.Observe(time.Since(start).Seconds())

	logging.Info().
		Int64("dataset_id", id).
		Int("users", users).
		Int("page_rows", pages).
		Time("cutoff", cutoff).
		Dur("elapsed", time.Since(start)).
		Msg("Loaded snapshot into memory")
	return id, nil
}

// Reload ingests a new dataset directory and swaps the in-memory store to it.
// Queries are rejected for the duration via the store's reload gate.
func (s *Store) Reload(ctx context.Context, store *similarity.Store, dir string, coeditLimit int) (int64, error) {
	if !store.BeginReload() {
		return 0, similarity.ErrReloadInProgress
	}
	defer store.EndReload()

	if _, err := s.IngestTSV(ctx, dir); err != nil {
		return 0, err
	}
	store.Reset(coeditLimit)
	return s.Load(ctx, store)
}

func (s *Store) loadMetadata(ctx context.Context, id int64, store *similarity.Store) (int, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT user_text, is_anon, num_edits, num_pages, earliest_edit, latest_edit
		 FROM user_metadata WHERE dataset_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("querying user_metadata: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var rec models.UserMetadata
		var earliest, latest sql.NullTime
		if err := rows.Scan(&rec.UserText, &rec.IsAnon, &rec.NumEdits, &rec.NumPages, &earliest, &latest); err != nil {
			return 0, fmt.Errorf("scanning user_metadata: %w", err)
		}
		if earliest.Valid {
			rec.EarliestEdit = earliest.Time.UTC()
		}
		if latest.Valid {
			rec.LatestEdit = latest.Time.UTC()
		}
		store.Metadata.Seed(rec)
		n++
	}
	return n, rows.Err()
}

func (s *Store) loadCoedit(ctx context.Context, id int64, store *similarity.Store) error {
	// Ordered by user so each neighbour list is seeded in one call.
	rows, err := s.conn.QueryContext(ctx,
		`SELECT user_text, neighbour, overlap FROM coedit WHERE dataset_id = ? ORDER BY user_text`, id)
	if err != nil {
		return fmt.Errorf("querying coedit: %w", err)
	}
	defer rows.Close()

	var current string
	var entry []models.Neighbour
	flush := func() {
		if current != "" && len(entry) > 0 {
			store.Coedit.Seed(current, entry)
		}
	}
	for rows.Next() {
		var user string
		var n models.Neighbour
		if err := rows.Scan(&user, &n.UserText, &n.Overlap); err != nil {
			return fmt.Errorf("scanning coedit: %w", err)
		}
		if user != current {
			flush()
			current = user
			entry = nil
		}
		entry = append(entry, n)
	}
	flush()
	return rows.Err()
}

func (s *Store) loadTemporal(ctx context.Context, id int64, store *similarity.Store) error {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT user_text, day_of_week, hour_of_day, num_edits FROM temporal WHERE dataset_id = ?`, id)
	if err != nil {
		return fmt.Errorf("querying temporal: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user string
		var day, hour, n int
		if err := rows.Scan(&user, &day, &hour, &n); err != nil {
			return fmt.Errorf("scanning temporal: %w", err)
		}
		store.Temporal.Fold(user, day, hour, n)
	}
	return rows.Err()
}

func (s *Store) loadPageEditors(ctx context.Context, id int64, store *similarity.Store) (int, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT page_id, user_text, last_edit FROM page_editors WHERE dataset_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("querying page_editors: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var pageID int64
		var user string
		var ts time.Time
		if err := rows.Scan(&pageID, &user, &ts); err != nil {
			return 0, fmt.Errorf("scanning page_editors: %w", err)
		}
		store.Pages.Record(pageID, user, ts.UTC())
		// The snapshot already counted this page for the user; a later
		// refresh must not count it as new.
		store.Metadata.SeedPage(user, pageID)
		n++
	}
	return n, rows.Err()
}
