// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Follow records that user follows followee. Re-following is a no-op.
func (db *DB) Follow(ctx context.Context, userID, followeeID uuid.UUID) error {
	return db.insertEdge(ctx, "follows", "followee_id", userID, followeeID)
}

// Block records that user blocked the author. Re-blocking is a no-op.
func (db *DB) Block(ctx context.Context, userID, blockedID uuid.UUID) error {
	return db.insertEdge(ctx, "blocks", "blocked_id", userID, blockedID)
}

// Mute records that user muted the author. Re-muting is a no-op.
func (db *DB) Mute(ctx context.Context, userID, mutedID uuid.UUID) error {
	return db.insertEdge(ctx, "mutes", "muted_id", userID, mutedID)
}

// insertEdge upserts one social-graph edge.
func (db *DB) insertEdge(ctx context.Context, table, column string, from, to uuid.UUID) error {
	//nolint:gosec // table/column come from the fixed call sites above
	query := fmt.Sprintf(
		`INSERT INTO %s (user_id, %s, created_at) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`, table, column,
	)
	_, err := db.conn.ExecContext(ctx, query, from.String(), to.String(), now())
	if err != nil {
		return fmt.Errorf("insert %s edge: %w", table, err)
	}
	return nil
}

// Following returns the account IDs the user follows, in follow order.
func (db *DB) Following(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return db.queryEdges(ctx,
		`SELECT followee_id FROM follows WHERE user_id = ? ORDER BY created_at, followee_id`,
		userID,
	)
}

// SocialGraph returns the user's blocked and muted author sets.
func (db *DB) SocialGraph(ctx context.Context, userID uuid.UUID) (blocked, muted []uuid.UUID, err error) {
	blocked, err = db.queryEdges(ctx,
		`SELECT blocked_id FROM blocks WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, nil, err
	}
	muted, err = db.queryEdges(ctx,
		`SELECT muted_id FROM mutes WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, nil, err
	}
	return blocked, muted, nil
}

func (db *DB) queryEdges(ctx context.Context, query string, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.conn.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse edge id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
