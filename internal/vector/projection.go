// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package vector

import (
	"context"
	"math"
)

// Projection is the lightweight parametric transform between raw encoder
// output and the retrieval space. The batch learning tier refits it from
// accumulated engagement pairs; item vectors are then re-derived from post
// text through the new projection.
//
// A Projection is immutable after construction. Refit returns a new instance
// so callers can swap atomically and never rank against a half-updated
// transform.
type Projection struct {
	dim int
	w   [][]float64 // row-major dim x dim
}

// IdentityProjection returns the identity transform for the given dimension.
// This is the cold-start projection: encoder output passes through unchanged.
func IdentityProjection(dim int) *Projection {
	w := make([][]float64, dim)
	for i := range w {
		w[i] = make([]float64, dim)
		w[i][i] = 1.0
	}
	return &Projection{dim: dim, w: w}
}

// Dimension returns the projection's vector dimension.
func (p *Projection) Dimension() int {
	return p.dim
}

// Apply maps a raw encoder vector into the retrieval space and normalizes.
func (p *Projection) Apply(v []float64) []float64 {
	out := make([]float64, p.dim)
	for i := 0; i < p.dim; i++ {
		row := p.w[i]
		var sum float64
		for j := 0; j < p.dim && j < len(v); j++ {
			sum += row[j] * v[j]
		}
		out[i] = sum
	}
	return Normalize(out)
}

// TrainingPair is one accumulated engagement example for the contrastive
// refit: the user vector at event time, the raw encoder vector of the post,
// and whether the engagement was positive.
type TrainingPair struct {
	User  []float64
	Base  []float64
	Label bool
}

// RefitConfig bounds a projection refit.
type RefitConfig struct {
	// LearningRate is the SGD step size.
	LearningRate float64

	// Epochs is the maximum number of passes over the pairs.
	Epochs int
}

// DefaultRefitConfig returns refit defaults.
func DefaultRefitConfig() RefitConfig {
	return RefitConfig{
		LearningRate: 0.05,
		Epochs:       3,
	}
}

// Refit trains a new projection on the accumulated pairs with a logistic
// contrastive objective: positives push the projected item vector toward the
// user vector, negatives push it away. Returns a new Projection; the receiver
// is left untouched. Training stops early when ctx is done so a slow refit
// cannot starve the real-time update tier.
func (p *Projection) Refit(ctx context.Context, pairs []TrainingPair, cfg RefitConfig) *Projection {
	if len(pairs) == 0 {
		return p.clone()
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultRefitConfig().LearningRate
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = DefaultRefitConfig().Epochs
	}

	next := p.clone()

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for _, pair := range pairs {
			select {
			case <-ctx.Done():
				return next
			default:
			}
			next.step(pair, cfg.LearningRate)
		}
	}

	return next
}

// step applies one SGD update for a single pair.
// Gradient of logistic loss on score = user · (W · base):
// dL/dW = (sigmoid(score) - y) * outer(user, base).
func (p *Projection) step(pair TrainingPair, lr float64) {
	projected := make([]float64, p.dim)
	for i := 0; i < p.dim; i++ {
		row := p.w[i]
		var sum float64
		for j := 0; j < p.dim && j < len(pair.Base); j++ {
			sum += row[j] * pair.Base[j]
		}
		projected[i] = sum
	}

	score := Dot(pair.User, projected)
	y := 0.0
	if pair.Label {
		y = 1.0
	}
	g := sigmoid(score) - y

	for i := 0; i < p.dim && i < len(pair.User); i++ {
		gi := lr * g * pair.User[i]
		if gi == 0 {
			continue
		}
		row := p.w[i]
		for j := 0; j < p.dim && j < len(pair.Base); j++ {
			row[j] -= gi * pair.Base[j]
		}
	}
}

// clone returns a deep copy of the projection.
func (p *Projection) clone() *Projection {
	w := make([][]float64, p.dim)
	for i := range w {
		w[i] = make([]float64, p.dim)
		copy(w[i], p.w[i])
	}
	return &Projection{dim: p.dim, w: w}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
