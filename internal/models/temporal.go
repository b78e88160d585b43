// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package models

// TimeBucket is one (day-of-week, hour-of-day) slot of a temporal observation.
// Day follows time.Weekday numbering (0 = Sunday). Hour is 0-23.
type TimeBucket struct {
	Day  int
	Hour int
}

// TemporalObservation is the sparse record of when a user edits: a count of
// edits per (day, hour) bucket. All counts are non-negative. The dense vectors
// used for cosine comparison are derived from this on demand and never stored.
type TemporalObservation map[TimeBucket]int

// Clone returns a deep copy of the observation.
func (o TemporalObservation) Clone() TemporalObservation {
	if o == nil {
		return nil
	}
	out := make(TemporalObservation, len(o))
	for b, n := range o {
		out[b] = n
	}
	return out
}

// DenseTemporalVector is the densified form of a TemporalObservation: one
// fixed-length vector per day of week and one per hour of day, optionally
// smoothed by an offset window before normalization.
type DenseTemporalVector struct {
	Day  [7]float64
	Hour [24]float64
}
