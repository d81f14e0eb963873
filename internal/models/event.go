// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionType classifies an engagement action on a post.
type ActionType string

// The fixed, ordered set of engagement actions. Scoring and ingestion reject
// anything outside this set.
const (
	ActionLike          ActionType = "like"
	ActionReply         ActionType = "reply"
	ActionRepost        ActionType = "repost"
	ActionNotInterested ActionType = "not_interested"
	ActionBlockAuthor   ActionType = "block_author"
	ActionMuteAuthor    ActionType = "mute_author"
	ActionView          ActionType = "view"
)

// ActionTypes lists every valid action in canonical order. The scorer emits
// one probability per entry of this slice, in this order.
var ActionTypes = []ActionType{
	ActionLike,
	ActionReply,
	ActionRepost,
	ActionNotInterested,
	ActionBlockAuthor,
	ActionMuteAuthor,
}

// IsValid reports whether t is a member of the enumerated action set.
// View is valid for ingestion but carries no learning signal.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionLike, ActionReply, ActionRepost,
		ActionNotInterested, ActionBlockAuthor, ActionMuteAuthor, ActionView:
		return true
	default:
		return false
	}
}

// Signal returns the online-learning signal strength for the action.
// Positive values pull user and item vectors together, negative values push
// them apart. Zero means the event is recorded but does not move vectors.
func (t ActionType) Signal() float64 {
	switch t {
	case ActionLike:
		return 1.0
	case ActionReply:
		return 1.5
	case ActionRepost:
		return 1.0
	case ActionNotInterested:
		return -1.0
	case ActionBlockAuthor:
		return -2.0
	case ActionMuteAuthor:
		return -1.5
	default:
		return 0.0
	}
}

// Positive reports whether the action is a positive engagement signal.
func (t ActionType) Positive() bool {
	return t.Signal() > 0
}

// EngagementEvent is the immutable record of one user action on one post.
// Events are append-only and are the source of truth for all online updates.
type EngagementEvent struct {
	// EventID uniquely identifies the event.
	EventID uuid.UUID `json:"event_id"`

	// UserID is the acting user.
	UserID uuid.UUID `json:"user_id"`

	// PostID is the post acted upon.
	PostID uuid.UUID `json:"post_id"`

	// Action is the engagement action type.
	Action ActionType `json:"action"`

	// Timestamp is when the action occurred.
	Timestamp time.Time `json:"timestamp"`

	// DwellMS is the optional dwell duration in milliseconds.
	DwellMS int64 `json:"dwell_ms,omitempty"`

	// Position is the optional position of the post in the served feed.
	Position int `json:"position,omitempty"`

	// ServedScore is the optional predicted score at serve time.
	ServedScore float64 `json:"served_score,omitempty"`
}

// NewEngagementEvent creates an event with a fresh ID and UTC timestamp.
func NewEngagementEvent(userID, postID uuid.UUID, action ActionType) *EngagementEvent {
	return &EngagementEvent{
		EventID:   uuid.New(),
		UserID:    userID,
		PostID:    postID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks required fields and the action enumeration.
func (e *EngagementEvent) Validate() error {
	if e.EventID == uuid.Nil {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.UserID == uuid.Nil {
		return &ValidationError{Field: "user_id", Message: "required"}
	}
	if e.PostID == uuid.Nil {
		return &ValidationError{Field: "post_id", Message: "required"}
	}
	if !e.Action.IsValid() {
		return &ValidationError{Field: "action", Message: "unknown action type"}
	}
	return nil
}

// Topic returns the bus topic for engagement events.
// All actions share one topic; the learning consumer fans them out itself.
func (e *EngagementEvent) Topic() string {
	return EngagementTopic
}

// EngagementTopic is the bus topic engagement events are published on.
const EngagementTopic = "engagement.events"

// ValidationError reports a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Message
}
