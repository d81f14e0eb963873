// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoringWeights maps an action type to its signed contribution weight.
// A request reads weights exactly once and carries the snapshot by value
// through the scoring stages, so one ranking never mixes weight versions.
type ScoringWeights map[ActionType]float64

// DefaultScoringWeights returns the built-in weight table used when the store
// has no active overrides.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		ActionLike:          1.0,
		ActionReply:         1.2,
		ActionRepost:        1.0,
		ActionNotInterested: -2.0,
		ActionBlockAuthor:   -10.0,
		ActionMuteAuthor:    -5.0,
	}
}

// Weight returns the weight for an action. Missing actions contribute zero;
// an unknown prediction never fails scoring.
func (w ScoringWeights) Weight(action ActionType) float64 {
	return w[action]
}

// Clone returns an independent copy of the weight table.
func (w ScoringWeights) Clone() ScoringWeights {
	out := make(ScoringWeights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Merge overlays other on top of w and returns the result.
// Neither input is modified.
func (w ScoringWeights) Merge(other ScoringWeights) ScoringWeights {
	out := w.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// WeightDescriptions documents what each action weight controls.
// Served alongside the weight table by the admin read endpoint.
var WeightDescriptions = map[ActionType]string{
	ActionLike:          "Predicted probability the user likes the post",
	ActionReply:         "Predicted probability the user replies",
	ActionRepost:        "Predicted probability the user reposts",
	ActionNotInterested: "Predicted probability the user marks not interested",
	ActionBlockAuthor:   "Predicted probability the user blocks the author",
	ActionMuteAuthor:    "Predicted probability the user mutes the author",
}

// WeightChange is one entry of the scoring-weight audit trail. Every changed
// action in a write produces one record, grouped by ChangeGroup, persisted
// before the new value becomes visible to ranking requests.
type WeightChange struct {
	// ChangeGroup ties together all entries of one update request.
	ChangeGroup uuid.UUID `json:"change_group"`

	// Action is the action type whose weight changed.
	Action ActionType `json:"action"`

	// PriorWeight is the value before the change.
	PriorWeight float64 `json:"prior_weight"`

	// NewWeight is the value after the change.
	NewWeight float64 `json:"new_weight"`

	// ChangedAt is when the change was recorded.
	ChangedAt time.Time `json:"changed_at"`
}
