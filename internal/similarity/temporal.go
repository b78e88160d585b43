// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package similarity

import (
	"math"
	"sync"

	"github.com/wikimedia/similarusers/internal/models"
)

// Similarity levels reported alongside raw cosine values. Thresholds are a
// tunable policy: they partition [0,1] into contiguous ranges with no gaps.
const (
	LevelSame      = "Same"
	LevelHigh      = "High"
	LevelMedium    = "Medium"
	LevelLow       = "Low"
	LevelNoOverlap = "No overlap"
)

// TemporalIndex holds the sparse per-user temporal observations: edit counts
// keyed by (day-of-week, hour-of-day). Dense vectors are derived on demand
// and never stored.
type TemporalIndex struct {
	mu  sync.RWMutex
	obs map[string]models.TemporalObservation
}

// NewTemporalIndex creates an empty temporal index.
func NewTemporalIndex() *TemporalIndex {
	return &TemporalIndex{obs: make(map[string]models.TemporalObservation)}
}

// Observation returns a copy of the user's sparse observation, or nil for an
// unknown user. Nil densifies to all-zero vectors.
func (t *TemporalIndex) Observation(user string) models.TemporalObservation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.obs[user].Clone()
}

// Fold adds n edits to the user's (day, hour) bucket.
func (t *TemporalIndex) Fold(user string, day, hour, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.obs[user]
	if o == nil {
		o = make(models.TemporalObservation)
		t.obs[user] = o
	}
	o[models.TimeBucket{Day: day, Hour: hour}] += n
}

// Len reports the number of users with observations.
func (t *TemporalIndex) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.obs)
}

// Densify converts a sparse observation into dense day and hour vectors.
//
// Each recorded count contributes once to its day bucket and once to every
// hour bucket in the offset window: smoothing is an additive spread, so an
// edit at hour 9 with offsets (-1, 0, 1) counts fully at hours 8, 9 and 10.
// Hour indices wrap modulo 24.
func Densify(o models.TemporalObservation, offsets []int) models.DenseTemporalVector {
	var v models.DenseTemporalVector
	for b, n := range o {
		if b.Day < 0 || b.Day > 6 || b.Hour < 0 || b.Hour > 23 || n <= 0 {
			continue
		}
		v.Day[b.Day] += float64(n)
		for _, off := range offsets {
			h := ((b.Hour+off)%24 + 24) % 24
			v.Hour[h] += float64(n)
		}
	}
	return v
}

// CosineSimilarity computes the cosine similarity of two non-negative
// vectors, in [0,1]. Returns 0 when either vector is all-zero.
func CosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, x := range a {
		normA += x * x
	}
	for _, x := range b {
		normB += x * x
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cs := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp float error so callers can rely on the [0,1] contract.
	if cs > 1 {
		cs = 1
	}
	if cs < 0 {
		cs = 0
	}
	return cs
}

// BucketLevel maps a cosine value onto a qualitative similarity level.
func BucketLevel(cs float64) string {
	switch {
	case cs >= 1:
		return LevelSame
	case cs > 0.8:
		return LevelHigh
	case cs > 0.5:
		return LevelMedium
	case cs > 0:
		return LevelLow
	default:
		return LevelNoOverlap
	}
}

// TemporalOverlap builds the API-facing overlap record for two dense vectors
// on one axis.
func TemporalOverlap(a, b []float64) models.TemporalOverlap {
	cs := CosineSimilarity(a, b)
	return models.TemporalOverlap{CosSim: cs, Level: BucketLevel(cs)}
}
