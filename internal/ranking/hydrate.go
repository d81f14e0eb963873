// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Hydrator attaches full post payloads to candidates that arrived as bare
// references (the two-tower branch returns IDs only).
type Hydrator struct {
	provider    DataProvider
	parallelism int
	logger      zerolog.Logger
}

// NewHydrator creates a candidate hydrator with the given fan-out bound.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func NewHydrator(provider DataProvider, parallelism int, logger zerolog.Logger) *Hydrator {
	if parallelism <= 0 {
		parallelism = 16
	}
	return &Hydrator{
		provider:    provider,
		parallelism: parallelism,
		logger:      logger.With().Str("component", "hydrator").Logger(),
	}
}

// Hydrate fills in missing Post payloads concurrently, bounded by the
// configured parallelism, and returns the candidates that hydrated
// successfully in their original relative order. A candidate whose lookup
// fails or whose post no longer exists is dropped, never a request failure.
func (h *Hydrator) Hydrate(ctx context.Context, candidates []*Candidate) []*Candidate {
	need := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Post == nil {
			need = append(need, c)
		}
	}

	if len(need) > 0 {
		sem := make(chan struct{}, h.parallelism)
		var wg sync.WaitGroup
		for _, c := range need {
			wg.Add(1)
			sem <- struct{}{}
			go func(c *Candidate) {
				defer wg.Done()
				defer func() { <-sem }()

				post, err := h.provider.Post(ctx, c.PostID)
				if err != nil {
					h.logger.Debug().Err(err).
						Str("post_id", c.PostID.String()).
						Msg("hydration failed, dropping candidate")
					return
				}
				c.Post = post
			}(c)
		}
		wg.Wait()
	}

	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Post != nil {
			out = append(out, c)
		}
	}
	return out
}
