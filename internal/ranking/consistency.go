// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// CandidateDeviation reports the score spread observed for one candidate
// across batch compositions.
type CandidateDeviation struct {
	PostID    uuid.UUID `json:"post_id"`
	MinScore  float64   `json:"min_score"`
	MaxScore  float64   `json:"max_score"`
	Deviation float64   `json:"deviation"`
}

// ConsistencyReport is the result of an isolation verification run.
type ConsistencyReport struct {
	UserID       uuid.UUID `json:"user_id"`
	SampleSize   int       `json:"sample_size"`
	Compositions int       `json:"compositions"`

	// MaxDeviation is the largest per-candidate score spread observed.
	MaxDeviation float64 `json:"max_deviation"`

	// Epsilon is the tolerated spread.
	Epsilon float64 `json:"epsilon"`

	// Consistent is true when every candidate stayed within epsilon.
	Consistent bool `json:"consistent"`

	// Violations lists candidates whose spread exceeded epsilon.
	Violations []CandidateDeviation `json:"violations,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// VerifyIsolation scores the same candidates under several batch
// compositions (full batch, each candidate alone, reversed order, split
// halves) and reports the per-candidate score spread. Candidate isolation
// requires the spread to stay within the configured epsilon: which posts
// share a batch must never change a post's score.
//
// The comparison uses weighted-combined scores before the diversity and
// network adjusters, which are whole-list by definition.
func (p *Pipeline) VerifyIsolation(ctx context.Context, userID uuid.UUID, sampleSize int) (*ConsistencyReport, error) {
	user, err := p.hydrateUser(ctx, &Request{UserID: userID})
	if err != nil {
		return nil, err
	}

	merged, _ := p.source(ctx, user, p.logger)
	candidates := p.hydrator.Hydrate(ctx, merged)
	candidates = applyFilters(ctx, p.preFilters, user, candidates, make(map[string]int))
	if sampleSize > 0 && len(candidates) > sampleSize {
		candidates = candidates[:sampleSize]
	}
	if len(candidates) == 0 {
		return &ConsistencyReport{
			UserID:     userID,
			Epsilon:    p.cfg.IsolationEpsilon,
			Consistent: true,
			Timestamp:  time.Now().UTC(),
		}, nil
	}

	weights, err := p.provider.ScoringWeights(ctx)
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}

	compositions := buildCompositions(candidates)

	// minScore/maxScore track the spread per post across all compositions.
	minScore := make(map[uuid.UUID]float64, len(candidates))
	maxScore := make(map[uuid.UUID]float64, len(candidates))
	seen := make(map[uuid.UUID]bool, len(candidates))

	for _, batch := range compositions {
		scored := p.score(ctx, user, cloneCandidates(batch), p.logger)
		CombineScores(scored, weights)
		for _, c := range scored {
			if !seen[c.PostID] {
				seen[c.PostID] = true
				minScore[c.PostID] = c.Score
				maxScore[c.PostID] = c.Score
				continue
			}
			minScore[c.PostID] = math.Min(minScore[c.PostID], c.Score)
			maxScore[c.PostID] = math.Max(maxScore[c.PostID], c.Score)
		}
	}

	report := &ConsistencyReport{
		UserID:       userID,
		SampleSize:   len(candidates),
		Compositions: len(compositions),
		Epsilon:      p.cfg.IsolationEpsilon,
		Consistent:   true,
		Timestamp:    time.Now().UTC(),
	}
	for _, c := range candidates {
		dev := maxScore[c.PostID] - minScore[c.PostID]
		if dev > report.MaxDeviation {
			report.MaxDeviation = dev
		}
		if dev > p.cfg.IsolationEpsilon {
			report.Consistent = false
			report.Violations = append(report.Violations, CandidateDeviation{
				PostID:    c.PostID,
				MinScore:  minScore[c.PostID],
				MaxScore:  maxScore[c.PostID],
				Deviation: dev,
			})
		}
	}
	return report, nil
}

// ItemConsistencyReport is the result of verifying one post across synthetic
// batch compositions.
type ItemConsistencyReport struct {
	UserID uuid.UUID `json:"user_id"`
	PostID uuid.UUID `json:"post_id"`

	// BatchScores holds the target post's combined score in each composition.
	BatchScores []float64 `json:"batch_scores"`

	// MaxDifference is the spread between the highest and lowest batch score.
	MaxDifference float64 `json:"max_difference"`

	// Variance is the population variance of the batch scores.
	Variance float64 `json:"variance"`

	Epsilon    float64   `json:"epsilon"`
	Consistent bool      `json:"consistent"`
	Timestamp  time.Time `json:"timestamp"`
}

// VerifyCandidate scores one post inside several synthetic batch
// compositions (varying the post's position and which fillers surround it)
// and reports the per-batch scores, their spread, and their variance. The
// spread must stay within epsilon for the isolation invariant to hold.
func (p *Pipeline) VerifyCandidate(ctx context.Context, userID, postID uuid.UUID, batches int) (*ItemConsistencyReport, error) {
	if batches < 2 {
		batches = 2
	}

	user, err := p.hydrateUser(ctx, &Request{UserID: userID})
	if err != nil {
		return nil, err
	}
	post, err := p.provider.Post(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("resolve post: %w", err)
	}
	target := &Candidate{PostID: postID, Post: post}

	merged, _ := p.source(ctx, user, p.logger)
	fillers := p.hydrator.Hydrate(ctx, merged)
	fillers = applyFilters(ctx, p.preFilters, user, fillers, make(map[string]int))
	kept := fillers[:0:0]
	for _, c := range fillers {
		if c.PostID != postID {
			kept = append(kept, c)
		}
	}
	fillers = kept
	if len(fillers) > batches*4 {
		fillers = fillers[:batches*4]
	}

	weights, err := p.provider.ScoringWeights(ctx)
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}

	report := &ItemConsistencyReport{
		UserID:    userID,
		PostID:    postID,
		Epsilon:   p.cfg.IsolationEpsilon,
		Timestamp: time.Now().UTC(),
	}

	for i := 0; i < batches; i++ {
		// Rotate fillers and vary the target's position per composition.
		batch := make([]*Candidate, 0, len(fillers)+1)
		for j := range fillers {
			batch = append(batch, fillers[(j+i)%len(fillers)])
		}
		pos := 0
		if len(batch) > 0 {
			pos = i % (len(batch) + 1)
		}
		batch = append(batch[:pos:pos], append([]*Candidate{target}, batch[pos:]...)...)

		scored := p.score(ctx, user, cloneCandidates(batch), p.logger)
		CombineScores(scored, weights)
		for _, c := range scored {
			if c.PostID == postID {
				report.BatchScores = append(report.BatchScores, c.Score)
				break
			}
		}
	}

	if len(report.BatchScores) > 0 {
		minS, maxS := report.BatchScores[0], report.BatchScores[0]
		var sum float64
		for _, s := range report.BatchScores {
			minS = math.Min(minS, s)
			maxS = math.Max(maxS, s)
			sum += s
		}
		mean := sum / float64(len(report.BatchScores))
		var varSum float64
		for _, s := range report.BatchScores {
			varSum += (s - mean) * (s - mean)
		}
		report.MaxDifference = maxS - minS
		report.Variance = varSum / float64(len(report.BatchScores))
	}
	report.Consistent = report.MaxDifference <= p.cfg.IsolationEpsilon
	return report, nil
}

// buildCompositions enumerates the batch shapes the candidates are re-scored
// under: the full batch, each candidate alone, the batch reversed, and the
// two halves separately.
func buildCompositions(candidates []*Candidate) [][]*Candidate {
	compositions := [][]*Candidate{candidates}

	for _, c := range candidates {
		compositions = append(compositions, []*Candidate{c})
	}

	reversed := make([]*Candidate, len(candidates))
	for i, c := range candidates {
		reversed[len(candidates)-1-i] = c
	}
	compositions = append(compositions, reversed)

	if len(candidates) > 1 {
		mid := len(candidates) / 2
		compositions = append(compositions, candidates[:mid], candidates[mid:])
	}
	return compositions
}

// cloneCandidates copies candidate structs so one composition's scoring
// cannot leak state into the next through shared Predictions maps.
func cloneCandidates(candidates []*Candidate) []*Candidate {
	out := make([]*Candidate, len(candidates))
	for i, c := range candidates {
		cp := *c
		cp.Predictions = nil
		cp.Score = 0
		out[i] = &cp
	}
	return out
}
