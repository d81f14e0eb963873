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

// ScoringWeights returns the active weight table: stored overrides merged on
// top of the built-in defaults.
func (db *DB) ScoringWeights(ctx context.Context) (models.ScoringWeights, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT action, weight FROM scoring_weights`)
	if err != nil {
		return nil, fmt.Errorf("query weights: %w", err)
	}
	defer rows.Close()

	overrides := make(models.ScoringWeights)
	for rows.Next() {
		var action string
		var weight float64
		if err := rows.Scan(&action, &weight); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		overrides[models.ActionType(action)] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models.DefaultScoringWeights().Merge(overrides), nil
}

// UpdateWeights applies a partial weight update in one transaction. Every
// changed action records an audit row (prior value, new value, shared change
// group) before the new value commits, so the audit trail can never miss a
// change that became visible to ranking.
func (db *DB) UpdateWeights(ctx context.Context, update models.ScoringWeights) ([]models.WeightChange, error) {
	if len(update) == 0 {
		return nil, nil
	}

	current, err := db.ScoringWeights(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin weight update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	changeGroup := uuid.New()
	ts := now()
	var changes []models.WeightChange

	for _, action := range models.ActionTypes {
		newWeight, ok := update[action]
		if !ok {
			continue
		}
		prior := current.Weight(action)
		if prior == newWeight {
			continue
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO scoring_weight_audit
				(change_group, action, prior_weight, new_weight, changed_at)
			 VALUES (?, ?, ?, ?, ?)`,
			changeGroup.String(), string(action), prior, newWeight, ts,
		)
		if err != nil {
			return nil, fmt.Errorf("record weight audit: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO scoring_weights (action, weight, updated_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT (action) DO UPDATE SET weight = excluded.weight,
				updated_at = excluded.updated_at`,
			string(action), newWeight, ts,
		)
		if err != nil {
			return nil, fmt.Errorf("upsert weight: %w", err)
		}

		changes = append(changes, models.WeightChange{
			ChangeGroup: changeGroup,
			Action:      action,
			PriorWeight: prior,
			NewWeight:   newWeight,
			ChangedAt:   ts,
		})
	}

	if len(changes) == 0 {
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit weight update: %w", err)
	}

	db.logger.Info().
		Str("change_group", changeGroup.String()).
		Int("changes", len(changes)).
		Msg("scoring weights updated")
	return changes, nil
}

// WeightAudit returns the audit trail, most recent first, bounded by limit.
func (db *DB) WeightAudit(ctx context.Context, limit int) ([]models.WeightChange, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT change_group, action, prior_weight, new_weight, changed_at
		 FROM scoring_weight_audit
		 ORDER BY changed_at DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query weight audit: %w", err)
	}
	defer rows.Close()

	var out []models.WeightChange
	for rows.Next() {
		var change models.WeightChange
		var groupStr, actionStr string
		err := rows.Scan(&groupStr, &actionStr, &change.PriorWeight,
			&change.NewWeight, &change.ChangedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if change.ChangeGroup, err = uuid.Parse(groupStr); err != nil {
			return nil, fmt.Errorf("parse change group: %w", err)
		}
		change.Action = models.ActionType(actionStr)
		out = append(out, change)
	}
	return out, rows.Err()
}
