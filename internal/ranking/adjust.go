// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/ranklab/internal/models"
)

// CombineScores sets each candidate's score to the weighted sum of its
// per-action predictions. The weight table is passed by value: every
// candidate of the request combines under the same weights even if an
// operator update lands mid-request. An action missing from the table
// contributes zero.
func CombineScores(candidates []*Candidate, weights models.ScoringWeights) {
	for _, c := range candidates {
		var score float64
		for _, action := range models.ActionTypes {
			score += weights.Weight(action) * c.Predictions[action]
		}
		c.Score = score
	}
}

// DiversityAdjuster attenuates repeated authors. The nth post of an author
// (n counted from 0 in descending-score order across the whole candidate
// list) is multiplied by (1-floor)·decay^n + floor, so the multiplier decays
// geometrically toward the floor and never reaches zero.
type DiversityAdjuster struct {
	Decay float64
	Floor float64
}

// NewDiversityAdjuster creates a diversity adjuster with the given decay and
// floor, clamped to sane ranges.
func NewDiversityAdjuster(decay, floor float64) *DiversityAdjuster {
	if decay <= 0 || decay > 1 {
		decay = 0.7
	}
	if floor < 0 || floor >= 1 {
		floor = 0.3
	}
	return &DiversityAdjuster{Decay: decay, Floor: floor}
}

// Apply multiplies scores in place. Candidates are visited in descending
// pre-adjustment score order so the author's best post keeps its full score;
// ties visit lower post IDs first for determinism.
func (d *DiversityAdjuster) Apply(candidates []*Candidate) {
	order := make([]*Candidate, len(candidates))
	copy(order, candidates)
	sort.Slice(order, func(i, j int) bool {
		if order[i].Score != order[j].Score {
			return order[i].Score > order[j].Score
		}
		return strings.Compare(order[i].PostID.String(), order[j].PostID.String()) < 0
	})

	positions := make(map[uuid.UUID]int, len(order))
	for _, c := range order {
		n := positions[c.Post.AuthorID]
		positions[c.Post.AuthorID] = n + 1
		c.Score *= d.Multiplier(n)
	}
}

// Multiplier returns the attenuation factor for an author's nth post.
func (d *DiversityAdjuster) Multiplier(n int) float64 {
	return (1.0-d.Floor)*math.Pow(d.Decay, float64(n)) + d.Floor
}

// NetworkAdjuster scales out-of-network candidates by a constant factor,
// expressing a mild preference for content from followed accounts.
type NetworkAdjuster struct {
	Factor float64
}

// NewNetworkAdjuster creates a network adjuster, defaulting the factor when
// out of range.
func NewNetworkAdjuster(factor float64) *NetworkAdjuster {
	if factor <= 0 || factor > 1 {
		factor = 0.8
	}
	return &NetworkAdjuster{Factor: factor}
}

// Apply multiplies out-of-network scores in place.
func (a *NetworkAdjuster) Apply(candidates []*Candidate) {
	for _, c := range candidates {
		if !c.InNetwork {
			c.Score *= a.Factor
		}
	}
}

// SelectTopK sorts candidates by final score descending and returns the top
// k. Ties break by post recency descending, then post ID ascending, so a
// fixed input always yields the same ordered output.
func SelectTopK(candidates []*Candidate, k int) []*Candidate {
	sorted := make([]*Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if !sorted[i].Post.CreatedAt.Equal(sorted[j].Post.CreatedAt) {
			return sorted[i].Post.CreatedAt.After(sorted[j].Post.CreatedAt)
		}
		return strings.Compare(sorted[i].PostID.String(), sorted[j].PostID.String()) < 0
	})

	if k > 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
