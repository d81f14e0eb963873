// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConsistencyCheck is one persisted isolation-verification result.
type ConsistencyCheck struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	PostID        uuid.UUID `json:"post_id"`
	MaxDifference float64   `json:"max_difference"`
	Variance      float64   `json:"variance"`
	Epsilon       float64   `json:"epsilon"`
	Consistent    bool      `json:"consistent"`
	CheckedAt     time.Time `json:"checked_at"`
}

// SaveConsistencyCheck appends one verification result to the log.
func (db *DB) SaveConsistencyCheck(ctx context.Context, check *ConsistencyCheck) error {
	if check.ID == uuid.Nil {
		check.ID = uuid.New()
	}
	if check.CheckedAt.IsZero() {
		check.CheckedAt = now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO consistency_checks
			(id, user_id, post_id, max_difference, variance, epsilon, consistent, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		check.ID.String(), check.UserID.String(), check.PostID.String(),
		check.MaxDifference, check.Variance, check.Epsilon, check.Consistent,
		check.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("save consistency check: %w", err)
	}
	return nil
}
