// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ranklab/internal/models"
	"github.com/tomtom215/ranklab/internal/vector"
)

// Request is one feed-ranking request.
type Request struct {
	// UserID is the user to rank a feed for.
	UserID uuid.UUID `json:"user_id"`

	// Limit overrides the configured result size when positive.
	Limit int `json:"limit,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// ScoredPost is one ranked entry of the response.
type ScoredPost struct {
	// PostID is the ranked post.
	PostID uuid.UUID `json:"post_id"`

	// AuthorID is the post's author.
	AuthorID uuid.UUID `json:"author_id"`

	// Text is the post body.
	Text string `json:"text"`

	// InNetwork is true when the post came from a followed account.
	InNetwork bool `json:"in_network"`

	// Score is the final adjusted score.
	Score float64 `json:"score"`
}

// Response is the ordered ranking result.
type Response struct {
	// Posts is the ranked feed, best first. May be shorter than requested:
	// post-selection filters drop without backfilling from the unranked tail.
	Posts []ScoredPost `json:"posts"`

	// TotalCandidates is the number of candidates considered before filtering.
	TotalCandidates int `json:"total_candidates"`

	// Metadata carries timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains timing and diagnostic information.
type ResponseMetadata struct {
	RequestID string `json:"request_id"`
	UserID    uuid.UUID `json:"user_id"`

	// InNetworkCount and RetrievedCount are per-source candidate counts.
	InNetworkCount int `json:"in_network_count"`
	RetrievedCount int `json:"retrieved_count"`

	// Degraded is true when a sourcing branch failed and the feed was built
	// from the surviving branch only.
	Degraded bool `json:"degraded,omitempty"`

	// FilterStats maps filter name to the number of candidates it removed.
	FilterStats map[string]int `json:"filter_stats,omitempty"`

	// LatencyMS is the end-to-end ranking latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// UserContext is the hydrated per-request view of the requesting user.
type UserContext struct {
	// UserID is the requesting user.
	UserID uuid.UUID

	// Following lists followed account IDs, in follow order.
	Following []uuid.UUID

	// Blocked and Muted are author exclusion sets.
	Blocked map[uuid.UUID]struct{}
	Muted   map[uuid.UUID]struct{}

	// History holds texts of recently engaged posts, most recent first,
	// bounded by the configured history limit.
	History []string

	// Vector is the user's current stored vector.
	Vector *vector.UserVector
}

// Candidate is the per-request, ephemeral projection of a post through the
// pipeline. It is owned by one request execution and never persisted.
type Candidate struct {
	// PostID identifies the candidate post.
	PostID uuid.UUID

	// InNetwork marks candidates sourced from followed accounts.
	InNetwork bool

	// Similarity is the retrieval similarity for two-tower candidates.
	Similarity float64

	// Post is the hydration payload. Nil until hydration completes.
	Post *models.Post

	// Predictions holds per-action probabilities attached by the scorer.
	Predictions map[models.ActionType]float64

	// Score is the running score: combined, then diversity-adjusted, then
	// network-adjusted.
	Score float64
}

// DataProvider is the relational boundary the pipeline depends on.
// Implemented by the store package; kept here so ranking has no import cycle
// with storage.
type DataProvider interface {
	// UserExists reports whether the user identifier resolves.
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)

	// Following returns account IDs the user follows.
	Following(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

	// SocialGraph returns the user's blocked and muted author sets.
	SocialGraph(ctx context.Context, userID uuid.UUID) (blocked, muted []uuid.UUID, err error)

	// EngagedTexts returns texts of the user's recently engaged posts,
	// most recent first, bounded by limit.
	EngagedTexts(ctx context.Context, userID uuid.UUID, limit int) ([]string, error)

	// RecentByAuthors returns recent top-level posts by the given authors,
	// most recent first, bounded by limit.
	RecentByAuthors(ctx context.Context, authors []uuid.UUID, limit int) ([]*models.Post, error)

	// Post returns one post, or store.ErrNotFound if it does not exist.
	Post(ctx context.Context, postID uuid.UUID) (*models.Post, error)

	// Posts returns the subset of the given posts that still exist, keyed
	// by ID. Used by the post-selection visibility re-check.
	Posts(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]*models.Post, error)

	// ScoringWeights returns the active weight table merged over defaults.
	ScoringWeights(ctx context.Context) (models.ScoringWeights, error)
}

// ActionScorer predicts per-action engagement probabilities for a single
// candidate. The per-candidate signature is the candidate-isolation contract:
// an implementation never sees the rest of the batch, so permuting batch
// order or composition cannot change a candidate's score.
type ActionScorer interface {
	// Score returns a probability in [0,1] for every models.ActionTypes entry.
	Score(ctx context.Context, user *UserContext, cand *Candidate) (map[models.ActionType]float64, error)
}
