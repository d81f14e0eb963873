// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ranklab/internal/config"
	"github.com/tomtom215/ranklab/internal/logging"
	"github.com/tomtom215/ranklab/internal/metrics"
	"github.com/tomtom215/ranklab/internal/models"
	"github.com/tomtom215/ranklab/internal/vector"
)

// Pipeline executes the full feed-ranking flow for one user request.
// Construct once with NewPipeline; safe for concurrent use.
type Pipeline struct {
	provider  DataProvider
	users     *vector.UserStore
	inNetwork Source
	twoTower  Source
	hydrator  *Hydrator
	scorer    ActionScorer

	preFilters  []Filter
	postFilters []Filter
	diversity   *DiversityAdjuster
	network     *NetworkAdjuster

	cfg    config.RankingConfig
	logger zerolog.Logger
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(
	provider DataProvider,
	users *vector.UserStore,
	items *vector.ItemStore,
	encoder vector.Encoder,
	cfg config.RankingConfig,
) *Pipeline {
	logger := logging.Logger().With().Str("component", "pipeline").Logger()

	retriever := NewTwoTowerRetriever(items)
	return &Pipeline{
		provider:  provider,
		users:     users,
		inNetwork: NewInNetworkSource(provider, cfg.InNetworkLimit),
		twoTower:  NewTwoTowerSource(retriever, encoder, cfg.RetrievalLimit, logger),
		hydrator:  NewHydrator(provider, cfg.HydrationParallelism, logger),
		scorer:    NewEmbeddingScorer(items, encoder),

		preFilters: PreScoringFilters(cfg.MaxPostAge),
		postFilters: []Filter{
			NewVisibilityRecheckFilter(provider),
			&ConversationDedupFilter{},
		},
		diversity: NewDiversityAdjuster(cfg.DiversityDecay, cfg.DiversityFloor),
		network:   NewNetworkAdjuster(cfg.NetworkFactor),

		cfg:    cfg,
		logger: logger,
	}
}

// sourceResult carries one sourcing branch outcome across the fan-out.
type sourceResult struct {
	name       string
	candidates []*Candidate
	err        error
}

// Rank produces a ranked feed for the request.
//
// Only an unresolvable user fails the request. A failed sourcing branch,
// failed hydrations, and per-candidate scoring errors all degrade the result
// instead, and degraded responses say so in their metadata.
func (p *Pipeline) Rank(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	requestID := req.RequestID
	if requestID == "" {
		requestID = logging.GenerateRequestID()
	}
	logger := p.logger.With().
		Str("request_id", requestID).
		Str("user_id", req.UserID.String()).
		Logger()

	user, err := p.hydrateUser(ctx, req)
	if err != nil {
		metrics.RankingRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	merged, meta := p.source(ctx, user, logger)
	totalCandidates := len(merged)

	stageStart := time.Now()
	candidates := p.hydrator.Hydrate(ctx, merged)
	metrics.StageDuration.WithLabelValues("hydrate").Observe(time.Since(stageStart).Seconds())
	if dropped := len(merged) - len(candidates); dropped > 0 {
		metrics.HydrationDropped.Add(float64(dropped))
	}

	filterStats := make(map[string]int)
	candidates = applyFilters(ctx, p.preFilters, user, candidates, filterStats)

	// Weights are read exactly once and carried by value through scoring and
	// combination, so a concurrent operator update cannot split the request.
	weights, err := p.provider.ScoringWeights(ctx)
	if err != nil || weights == nil {
		if err != nil {
			logger.Warn().Err(err).Msg("weight lookup failed, using defaults")
		}
		weights = models.DefaultScoringWeights()
	}

	candidates = p.score(ctx, user, candidates, logger)

	stageStart = time.Now()
	CombineScores(candidates, weights)
	p.diversity.Apply(candidates)
	p.network.Apply(candidates)
	selected := SelectTopK(candidates, p.resultLimit(req))
	metrics.StageDuration.WithLabelValues("adjust").Observe(time.Since(stageStart).Seconds())

	// Post-selection filters drop without backfilling: a feed shorter than
	// requested is preferred over resurrecting posts that scored below the cut.
	selected = applyFilters(ctx, p.postFilters, user, selected, filterStats)

	posts := make([]ScoredPost, len(selected))
	for i, c := range selected {
		posts[i] = ScoredPost{
			PostID:    c.PostID,
			AuthorID:  c.Post.AuthorID,
			Text:      c.Post.Text,
			InNetwork: c.InNetwork,
			Score:     c.Score,
		}
	}

	elapsed := time.Since(start)
	metrics.RankingDuration.Observe(elapsed.Seconds())
	status := "ok"
	if meta.degraded {
		status = "degraded"
	}
	metrics.RankingRequests.WithLabelValues(status).Inc()

	logger.Info().
		Int("candidates", totalCandidates).
		Int("returned", len(posts)).
		Bool("degraded", meta.degraded).
		Dur("latency", elapsed).
		Msg("feed ranked")

	return &Response{
		Posts:           posts,
		TotalCandidates: totalCandidates,
		Metadata: ResponseMetadata{
			RequestID:      requestID,
			UserID:         req.UserID,
			InNetworkCount: meta.inNetworkCount,
			RetrievedCount: meta.retrievedCount,
			Degraded:       meta.degraded,
			FilterStats:    filterStats,
			LatencyMS:      elapsed.Milliseconds(),
			Timestamp:      time.Now().UTC(),
		},
	}, nil
}

// hydrateUser resolves the requesting user's social graph, engagement
// history, and stored vector.
func (p *Pipeline) hydrateUser(ctx context.Context, req *Request) (*UserContext, error) {
	exists, err := p.provider.UserExists(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	following, err := p.provider.Following(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load following: %w", err)
	}
	blocked, muted, err := p.provider.SocialGraph(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load social graph: %w", err)
	}
	history, err := p.provider.EngagedTexts(ctx, req.UserID, p.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load engagement history: %w", err)
	}

	return &UserContext{
		UserID:    req.UserID,
		Following: following,
		Blocked:   toSet(blocked),
		Muted:     toSet(muted),
		History:   history,
		Vector:    p.users.GetOrCreate(req.UserID),
	}, nil
}

type sourceMeta struct {
	inNetworkCount int
	retrievedCount int
	degraded       bool
}

// source fans out both sourcing branches under the per-branch timeout and
// merges in-network candidates first so duplicates resolve in their favor.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func (p *Pipeline) source(ctx context.Context, user *UserContext, logger zerolog.Logger) ([]*Candidate, sourceMeta) {
	srcCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.SourceTimeout > 0 {
		srcCtx, cancel = context.WithTimeout(ctx, p.cfg.SourceTimeout)
		defer cancel()
	}

	stageStart := time.Now()
	results := make(chan sourceResult, 2)
	for _, src := range []Source{p.inNetwork, p.twoTower} {
		go func(src Source) {
			cands, err := src.Fetch(srcCtx, user)
			results <- sourceResult{name: src.Name(), candidates: cands, err: err}
		}(src)
	}

	var meta sourceMeta
	var inNet, retrieved []*Candidate
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			logger.Warn().Err(res.err).Str("source", res.name).Msg("sourcing branch failed")
			metrics.SourceFailures.WithLabelValues(res.name).Inc()
			meta.degraded = true
			continue
		}
		metrics.SourceCandidates.WithLabelValues(res.name).Add(float64(len(res.candidates)))
		if res.name == p.inNetwork.Name() {
			inNet = res.candidates
		} else {
			retrieved = res.candidates
		}
	}
	metrics.StageDuration.WithLabelValues("source").Observe(time.Since(stageStart).Seconds())

	meta.inNetworkCount = len(inNet)
	meta.retrievedCount = len(retrieved)
	return append(inNet, retrieved...), meta
}

// score attaches per-action predictions to every candidate. A candidate whose
// scoring fails is dropped rather than failing the request.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func (p *Pipeline) score(ctx context.Context, user *UserContext, candidates []*Candidate, logger zerolog.Logger) []*Candidate {
	stageStart := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("score").Observe(time.Since(stageStart).Seconds())
	}()

	out := candidates[:0:0]
	for _, c := range candidates {
		predictions, err := p.scorer.Score(ctx, user, c)
		if err != nil {
			logger.Debug().Err(err).
				Str("post_id", c.PostID.String()).
				Msg("scoring failed, dropping candidate")
			continue
		}
		c.Predictions = predictions
		out = append(out, c)
	}
	return out
}

// resultLimit resolves the effective feed size for the request.
func (p *Pipeline) resultLimit(req *Request) int {
	limit := p.cfg.ResultSize
	if req.Limit > 0 {
		limit = req.Limit
	}
	if p.cfg.MaxResultSize > 0 && limit > p.cfg.MaxResultSize {
		limit = p.cfg.MaxResultSize
	}
	return limit
}

// applyFilters runs a filter chain in order, accumulating per-filter drop
// counts into stats.
func applyFilters(ctx context.Context, filters []Filter, user *UserContext, candidates []*Candidate, stats map[string]int) []*Candidate {
	for _, f := range filters {
		before := len(candidates)
		candidates = f.Apply(ctx, user, candidates)
		if dropped := before - len(candidates); dropped > 0 {
			stats[f.Name()] += dropped
			metrics.FilterDropped.WithLabelValues(f.Name()).Add(float64(dropped))
		}
	}
	return candidates
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
