// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/ranklab/internal/models"
)

// AppendEvent records one engagement event. The log is append-only;
// duplicate event IDs are ignored so bus redeliveries stay idempotent.
func (db *DB) AppendEvent(ctx context.Context, event *models.EngagementEvent) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO engagement_events
			(event_id, user_id, post_id, action, ts, dwell_ms, position, served_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		event.EventID.String(), event.UserID.String(), event.PostID.String(),
		string(event.Action), event.Timestamp, event.DwellMS, event.Position,
		event.ServedScore,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// EngagedTexts returns the texts of posts the user recently engaged with,
// most recent engagement first, bounded by limit. Views count as engagement
// here: they shape the user tower even though they move no vectors.
func (db *DB) EngagedTexts(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.text
		 FROM engagement_events e
		 JOIN posts p ON p.id = e.post_id
		 WHERE e.user_id = ?
		 ORDER BY e.ts DESC, e.event_id
		 LIMIT ?`,
		userID.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query engaged texts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan text: %w", err)
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// EventCount returns the size of the engagement log.
func (db *DB) EventCount(ctx context.Context) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM engagement_events`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
