// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

// Package models defines the core domain types shared across the ranking
// pipeline, the online learning path, and the storage layer.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Post represents a content item eligible for feed ranking.
// A Post is immutable for the duration of a single ranking request;
// the authoring subsystem mutates posts only between requests.
type Post struct {
	// ID is the unique post identifier.
	ID uuid.UUID `json:"id"`

	// AuthorID identifies the account that authored the post.
	AuthorID uuid.UUID `json:"author_id"`

	// Text is the post body used for embedding and scoring.
	Text string `json:"text"`

	// ParentID is the post this one replies to, if any.
	// Posts with a parent are replies and are excluded from sourcing.
	ParentID *uuid.UUID `json:"parent_id,omitempty"`

	// ThreadID is the root post of the conversation this post belongs to.
	// For top-level posts it equals ID.
	ThreadID uuid.UUID `json:"thread_id"`

	// CreatedAt is the post creation time.
	CreatedAt time.Time `json:"created_at"`

	// Cached engagement counters, maintained by the authoring subsystem.
	LikeCount   int `json:"like_count,omitempty"`
	ReplyCount  int `json:"reply_count,omitempty"`
	RepostCount int `json:"repost_count,omitempty"`
	ViewCount   int `json:"view_count,omitempty"`

	// Visibility moderation state: "visible", "deleted", "violating", "spam".
	Visibility string `json:"visibility,omitempty"`
}

// IsReply reports whether the post is a reply within a conversation.
func (p *Post) IsReply() bool {
	return p.ParentID != nil
}

// Visible reports whether the post may be shown in a feed.
// An empty visibility value is treated as visible for backward compatibility
// with rows written before moderation state existed.
func (p *Post) Visible() bool {
	return p.Visibility == "" || p.Visibility == VisibilityVisible
}

// Post visibility states.
const (
	VisibilityVisible   = "visible"
	VisibilityDeleted   = "deleted"
	VisibilityViolating = "violating"
	VisibilitySpam      = "spam"
)
