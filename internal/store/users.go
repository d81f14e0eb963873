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

// User is one registered account.
type User struct {
	ID        uuid.UUID `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt string    `json:"created_at"`
}

// CreateUser registers a new user with a fresh ID.
func (db *DB) CreateUser(ctx context.Context, handle string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, handle, created_at) VALUES (?, ?, ?)`,
		id.String(), handle, now(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// UserExists reports whether the user identifier resolves.
func (db *DB) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE id = ?`, userID.String(),
	).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("query user: %w", err)
	}
	return true, nil
}

// UserCount returns the number of registered users.
func (db *DB) UserCount(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
