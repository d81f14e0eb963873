// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/ranklab/internal/models"
	"github.com/tomtom215/ranklab/internal/vector"
)

// actionHead is one per-action logistic head over the shared feature vector
// (similarity, recency, popularity).
type actionHead struct {
	bias       float64
	similarity float64
	recency    float64
	popularity float64
}

// actionHeads are fixed coefficients per action. Positive actions reward
// similarity; negative actions predict higher probability for content far
// from the user's vector.
var actionHeads = map[models.ActionType]actionHead{
	models.ActionLike:          {bias: -2.0, similarity: 3.0, recency: 0.5, popularity: 0.8},
	models.ActionReply:         {bias: -3.0, similarity: 2.5, recency: 0.6, popularity: 0.5},
	models.ActionRepost:        {bias: -3.2, similarity: 2.8, recency: 0.4, popularity: 0.9},
	models.ActionNotInterested: {bias: -2.5, similarity: -2.0, recency: -0.2, popularity: 0.1},
	models.ActionBlockAuthor:   {bias: -5.0, similarity: -1.5, recency: 0.0, popularity: 0.0},
	models.ActionMuteAuthor:    {bias: -4.5, similarity: -1.5, recency: 0.0, popularity: 0.0},
}

// EmbeddingScorer predicts per-action engagement probabilities from the
// user vector and the candidate's item vector. It is stateless per call and
// looks at exactly one candidate, so batch composition cannot influence any
// score.
type EmbeddingScorer struct {
	items   *vector.ItemStore
	encoder vector.Encoder

	// now is overridable for tests; defaults to time.Now.
	now func() time.Time
}

// NewEmbeddingScorer creates the per-action scorer. The encoder is the
// fallback path for candidates whose item vector is not yet stored.
func NewEmbeddingScorer(items *vector.ItemStore, encoder vector.Encoder) *EmbeddingScorer {
	return &EmbeddingScorer{items: items, encoder: encoder}
}

var _ ActionScorer = (*EmbeddingScorer)(nil)

// Score returns a probability in [0,1] for every scoring action.
func (s *EmbeddingScorer) Score(ctx context.Context, user *UserContext, cand *Candidate) (map[models.ActionType]float64, error) {
	itemVec, err := s.itemVector(ctx, cand)
	if err != nil {
		return nil, err
	}

	var sim float64
	if user.Vector != nil {
		sim = vector.Dot(user.Vector.Vec, itemVec)
	}
	rec := s.recencyFeature(cand.Post.CreatedAt)
	pop := popularityFeature(cand.Post)

	predictions := make(map[models.ActionType]float64, len(actionHeads))
	for action, head := range actionHeads {
		z := head.bias + head.similarity*sim + head.recency*rec + head.popularity*pop
		predictions[action] = sigmoid(z)
	}
	return predictions, nil
}

// itemVector returns the stored vector for the candidate, encoding its text
// on the fly when no vector exists yet.
func (s *EmbeddingScorer) itemVector(ctx context.Context, cand *Candidate) ([]float64, error) {
	iv, err := s.items.Get(cand.PostID)
	if err == nil {
		return iv.Vec, nil
	}
	if !errors.Is(err, vector.ErrVectorNotFound) {
		return nil, fmt.Errorf("item vector lookup: %w", err)
	}

	vec, err := s.encoder.Encode(ctx, cand.Post.Text)
	if err != nil {
		return nil, fmt.Errorf("encode candidate: %w", err)
	}
	return vec, nil
}

// recencyFeature maps post age to (0,1], halving roughly daily.
func (s *EmbeddingScorer) recencyFeature(createdAt time.Time) float64 {
	nowFn := s.now
	if nowFn == nil {
		nowFn = time.Now
	}
	age := nowFn().Sub(createdAt)
	if age < 0 {
		age = 0
	}
	return math.Exp(-age.Hours() / 24.0)
}

// popularityFeature compresses engagement counters into [0,1].
func popularityFeature(p *models.Post) float64 {
	raw := math.Log1p(float64(p.LikeCount + p.ReplyCount + p.RepostCount))
	f := raw / 10.0
	if f > 1.0 {
		f = 1.0
	}
	return f
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
