// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ranklab/internal/vector"
)

// Source is one independently invocable candidate sourcing branch.
type Source interface {
	// Name returns the source identifier ("in_network", "two_tower").
	Name() string

	// Fetch returns candidates for the user. An empty result is not an error.
	Fetch(ctx context.Context, user *UserContext) ([]*Candidate, error)
}

// InNetworkSource returns recent top-level posts authored by accounts the
// user follows, most recent first.
type InNetworkSource struct {
	provider DataProvider
	limit    int
}

// NewInNetworkSource creates the in-network sourcing branch.
func NewInNetworkSource(provider DataProvider, limit int) *InNetworkSource {
	if limit <= 0 {
		limit = 300
	}
	return &InNetworkSource{provider: provider, limit: limit}
}

// Name returns the source identifier.
func (s *InNetworkSource) Name() string { return "in_network" }

// Fetch returns recent posts from followed accounts. A user who follows no
// one gets an empty list, not an error.
func (s *InNetworkSource) Fetch(ctx context.Context, user *UserContext) ([]*Candidate, error) {
	if len(user.Following) == 0 {
		return nil, nil
	}

	posts, err := s.provider.RecentByAuthors(ctx, user.Following, s.limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]*Candidate, 0, len(posts))
	for _, p := range posts {
		candidates = append(candidates, &Candidate{
			PostID:    p.ID,
			InNetwork: true,
			Post:      p,
		})
	}
	return candidates, nil
}

// Retrieved is one two-tower retrieval hit.
type Retrieved struct {
	PostID     uuid.UUID
	Similarity float64
}

// TwoTowerRetriever ranks all stored item vectors against a query vector by
// dot product. It is a leaf consumer of the vector stores and touches no
// relational storage.
type TwoTowerRetriever struct {
	items *vector.ItemStore
}

// NewTwoTowerRetriever creates a retriever over the item vector store.
func NewTwoTowerRetriever(items *vector.ItemStore) *TwoTowerRetriever {
	return &TwoTowerRetriever{items: items}
}

// Retrieve returns the top-limit items by similarity to query, excluding the
// given post IDs and any post authored by owner. Ties in similarity break by
// item recency descending, then post ID ascending for reproducibility.
func (r *TwoTowerRetriever) Retrieve(query []float64, exclude map[uuid.UUID]struct{}, owner uuid.UUID, limit int) []Retrieved {
	snapshot := r.items.Snapshot()

	type hit struct {
		vec *vector.ItemVector
		sim float64
	}
	hits := make([]hit, 0, len(snapshot))
	for _, iv := range snapshot {
		if iv.Reply {
			continue
		}
		if _, skip := exclude[iv.PostID]; skip {
			continue
		}
		if iv.AuthorID == owner {
			continue
		}
		hits = append(hits, hit{vec: iv, sim: vector.Dot(query, iv.Vec)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		if !hits[i].vec.CreatedAt.Equal(hits[j].vec.CreatedAt) {
			return hits[i].vec.CreatedAt.After(hits[j].vec.CreatedAt)
		}
		return strings.Compare(hits[i].vec.PostID.String(), hits[j].vec.PostID.String()) < 0
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]Retrieved, len(hits))
	for i, h := range hits {
		out[i] = Retrieved{PostID: h.vec.PostID, Similarity: h.sim}
	}
	return out
}

// TwoTowerSource is the out-of-network sourcing branch: it encodes the user's
// engagement history into a query vector and retrieves similar items.
type TwoTowerSource struct {
	retriever *TwoTowerRetriever
	encoder   vector.Encoder
	limit     int
	logger    zerolog.Logger
}

// NewTwoTowerSource creates the two-tower sourcing branch.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func NewTwoTowerSource(retriever *TwoTowerRetriever, encoder vector.Encoder, limit int, logger zerolog.Logger) *TwoTowerSource {
	if limit <= 0 {
		limit = 300
	}
	return &TwoTowerSource{
		retriever: retriever,
		encoder:   encoder,
		limit:     limit,
		logger:    logger.With().Str("component", "two_tower").Logger(),
	}
}

// Name returns the source identifier.
func (s *TwoTowerSource) Name() string { return "two_tower" }

// Fetch encodes the user's history and retrieves the most similar items.
//
// Cold-start fallbacks, in order: empty history reuses the stored user
// vector; an unavailable encoder also falls back to the stored vector rather
// than failing the branch. A zero query vector still retrieves — every
// similarity is zero and the recency tie-break produces a recency-ordered
// cold-start feed.
func (s *TwoTowerSource) Fetch(ctx context.Context, user *UserContext) ([]*Candidate, error) {
	query := s.queryVector(ctx, user)

	hits := s.retriever.Retrieve(query, nil, user.UserID, s.limit)

	candidates := make([]*Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, &Candidate{
			PostID:     h.PostID,
			InNetwork:  false,
			Similarity: h.Similarity,
		})
	}
	return candidates, nil
}

// queryVector derives the user-tower query from engagement history, falling
// back to the stored user vector when history is empty or the encoder is
// unavailable.
func (s *TwoTowerSource) queryVector(ctx context.Context, user *UserContext) []float64 {
	if len(user.History) > 0 {
		query, err := s.encoder.EncodeHistory(ctx, user.History)
		if err == nil {
			return query
		}
		if errors.Is(err, vector.ErrEncoderUnavailable) {
			s.logger.Warn().Msg("encoder unavailable, falling back to stored user vector")
		} else {
			s.logger.Warn().Err(err).Msg("history encoding failed, falling back to stored user vector")
		}
	}

	if user.Vector != nil {
		return user.Vector.Vec
	}
	return vector.Zero(s.encoder.Dimension())
}
