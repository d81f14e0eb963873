// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package vector

import (
	"context"
	"sync/atomic"
)

// ProjectedEncoder composes a base encoder with a swappable linear
// projection. The base encoder stays frozen; the batch learning tier refits
// the projection and installs the replacement atomically, so concurrent
// encodes see either the old or the new projection in full.
type ProjectedEncoder struct {
	base Encoder
	proj atomic.Pointer[Projection]
}

// NewProjectedEncoder wraps base with an identity projection.
func NewProjectedEncoder(base Encoder) *ProjectedEncoder {
	e := &ProjectedEncoder{base: base}
	e.proj.Store(IdentityProjection(base.Dimension()))
	return e
}

var _ Encoder = (*ProjectedEncoder)(nil)

// Encode encodes text with the base encoder and applies the current
// projection.
func (e *ProjectedEncoder) Encode(ctx context.Context, text string) ([]float64, error) {
	raw, err := e.base.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	return e.proj.Load().Apply(raw), nil
}

// EncodeHistory encodes an engagement history and applies the current
// projection.
func (e *ProjectedEncoder) EncodeHistory(ctx context.Context, texts []string) ([]float64, error) {
	raw, err := e.base.EncodeHistory(ctx, texts)
	if err != nil {
		return nil, err
	}
	return e.proj.Load().Apply(raw), nil
}

// Dimension returns the embedding dimension.
func (e *ProjectedEncoder) Dimension() int {
	return e.base.Dimension()
}

// Projection returns the currently installed projection.
func (e *ProjectedEncoder) Projection() *Projection {
	return e.proj.Load()
}

// SetProjection atomically installs a new projection.
func (e *ProjectedEncoder) SetProjection(p *Projection) {
	e.proj.Store(p)
}
