// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package similarity

import (
	"github.com/wikimedia/similarusers/internal/models"
)

// Ranker scores a user's co-edit neighbours. It reads the store but never
// mutates it; callers are expected to have refreshed the user first.
type Ranker struct {
	store   *Store
	offsets []int
}

// NewRanker creates a ranker using the given hour-smoothing offsets.
func NewRanker(store *Store, offsets []int) *Ranker {
	return &Ranker{store: store, offsets: offsets}
}

// Rank returns the top k neighbours of the user, ordered by descending
// co-edit count. The overlap count is the sole sort key; the per-neighbour
// ratios and temporal similarities annotate the result without reordering it.
// k <= 0 or an unknown user yields an empty result.
func (r *Ranker) Rank(user string, k int) []models.ScoredNeighbour {
	if k <= 0 {
		return nil
	}

	neighbours := r.store.Coedit.Lookup(user)
	if len(neighbours) > k {
		neighbours = neighbours[:k]
	}
	if len(neighbours) == 0 {
		return nil
	}

	userMeta, _ := r.store.Metadata.Get(user)
	userVec := Densify(r.store.Temporal.Observation(user), r.offsets)

	scored := make([]models.ScoredNeighbour, 0, len(neighbours))
	for _, n := range neighbours {
		s := models.ScoredNeighbour{
			UserText:    n.UserText,
			EditOverlap: ratio(n.Overlap, userMeta.NumEdits),
		}
		// A neighbour absent from the metadata store contributes an inverse
		// overlap of zero rather than failing the whole query.
		if nMeta, ok := r.store.Metadata.Get(n.UserText); ok {
			s.NumEditsInData = nMeta.NumEdits
			s.InverseEditOverlap = ratio(n.Overlap, nMeta.NumEdits)
		}
		nVec := Densify(r.store.Temporal.Observation(n.UserText), r.offsets)
		s.DayOverlap = TemporalOverlap(userVec.Day[:], nVec.Day[:])
		s.HourOverlap = TemporalOverlap(userVec.Hour[:], nVec.Hour[:])
		scored = append(scored, s)
	}
	return scored
}

// ratio computes count/total clamped to [0,1]; zero total yields zero.
func ratio(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	r := float64(count) / float64(total)
	if r > 1 {
		return 1
	}
	return r
}
