// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter removes candidates before scoring. Filters are pure and idempotent:
// applying one twice removes nothing the second time.
type Filter interface {
	// Name identifies the filter in drop statistics.
	Name() string

	// Apply returns the candidates that survive, preserving relative order.
	Apply(ctx context.Context, user *UserContext, candidates []*Candidate) []*Candidate
}

// PreScoringFilters returns the fixed pre-scoring chain in application order.
// The order matters: dedup runs first so later filters see each post once,
// and core-data runs before any filter that inspects post fields.
func PreScoringFilters(maxAge time.Duration) []Filter {
	return []Filter{
		&DropDuplicatesFilter{},
		&CoreDataFilter{},
		&AgeFilter{MaxAge: maxAge},
		&SelfPostFilter{},
		&SocialGraphFilter{},
	}
}

// DropDuplicatesFilter keeps the first occurrence of each post ID. Because
// the merge stage concatenates in-network candidates first, a post reachable
// through both branches survives as an in-network candidate.
type DropDuplicatesFilter struct{}

// Name identifies the filter in drop statistics.
func (f *DropDuplicatesFilter) Name() string { return "drop_duplicates" }

// Apply removes candidates whose post ID was already seen.
func (f *DropDuplicatesFilter) Apply(_ context.Context, _ *UserContext, candidates []*Candidate) []*Candidate {
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	out := candidates[:0:0]
	for _, c := range candidates {
		if _, dup := seen[c.PostID]; dup {
			continue
		}
		seen[c.PostID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// CoreDataFilter drops candidates that failed hydration, carry no text, or
// are not in a visible state.
type CoreDataFilter struct{}

// Name identifies the filter in drop statistics.
func (f *CoreDataFilter) Name() string { return "core_data" }

// Apply removes structurally unusable candidates.
func (f *CoreDataFilter) Apply(_ context.Context, _ *UserContext, candidates []*Candidate) []*Candidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Post == nil || c.Post.Text == "" || !c.Post.Visible() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// AgeFilter drops posts older than the configured maximum age.
type AgeFilter struct {
	MaxAge time.Duration

	// now is overridable for tests; defaults to time.Now.
	now func() time.Time
}

// Name identifies the filter in drop statistics.
func (f *AgeFilter) Name() string { return "age" }

// Apply removes posts created before the age cutoff.
func (f *AgeFilter) Apply(_ context.Context, _ *UserContext, candidates []*Candidate) []*Candidate {
	nowFn := f.now
	if nowFn == nil {
		nowFn = time.Now
	}
	cutoff := nowFn().Add(-f.MaxAge)

	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Post.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SelfPostFilter drops the requesting user's own posts.
type SelfPostFilter struct{}

// Name identifies the filter in drop statistics.
func (f *SelfPostFilter) Name() string { return "self" }

// Apply removes posts authored by the requesting user.
func (f *SelfPostFilter) Apply(_ context.Context, user *UserContext, candidates []*Candidate) []*Candidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Post.AuthorID == user.UserID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SocialGraphFilter drops posts from authors the user has blocked or muted.
type SocialGraphFilter struct{}

// Name identifies the filter in drop statistics.
func (f *SocialGraphFilter) Name() string { return "social_graph" }

// Apply removes posts whose author is in the blocked or muted sets.
func (f *SocialGraphFilter) Apply(_ context.Context, user *UserContext, candidates []*Candidate) []*Candidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if _, blocked := user.Blocked[c.Post.AuthorID]; blocked {
			continue
		}
		if _, muted := user.Muted[c.Post.AuthorID]; muted {
			continue
		}
		out = append(out, c)
	}
	return out
}

// VisibilityRecheckFilter re-verifies, after selection, that each chosen post
// still exists and is visible. Posts deleted or moderated while the request
// was in flight drop out; the feed is not backfilled to compensate.
type VisibilityRecheckFilter struct {
	provider DataProvider
}

// NewVisibilityRecheckFilter creates the post-selection visibility filter.
func NewVisibilityRecheckFilter(provider DataProvider) *VisibilityRecheckFilter {
	return &VisibilityRecheckFilter{provider: provider}
}

// Name identifies the filter in drop statistics.
func (f *VisibilityRecheckFilter) Name() string { return "visibility_recheck" }

// Apply drops selected posts that are no longer visible. A failed batch
// lookup keeps the selection as-is rather than emptying the feed.
func (f *VisibilityRecheckFilter) Apply(ctx context.Context, _ *UserContext, candidates []*Candidate) []*Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.PostID
	}

	current, err := f.provider.Posts(ctx, ids)
	if err != nil {
		return candidates
	}

	out := candidates[:0:0]
	for _, c := range candidates {
		p, ok := current[c.PostID]
		if !ok || !p.Visible() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ConversationDedupFilter keeps at most one post per conversation thread,
// retaining the highest-ranked occurrence.
type ConversationDedupFilter struct{}

// Name identifies the filter in drop statistics.
func (f *ConversationDedupFilter) Name() string { return "conversation_dedup" }

// Apply keeps the first (best-ranked) post of each thread. Candidates reach
// this filter already in final rank order.
func (f *ConversationDedupFilter) Apply(_ context.Context, _ *UserContext, candidates []*Candidate) []*Candidate {
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	out := candidates[:0:0]
	for _, c := range candidates {
		thread := c.Post.ThreadID
		if thread == uuid.Nil {
			thread = c.PostID
		}
		if _, dup := seen[thread]; dup {
			continue
		}
		seen[thread] = struct{}{}
		out = append(out, c)
	}
	return out
}
