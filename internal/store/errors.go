// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a unique constraint would be violated.
var ErrAlreadyExists = errors.New("already exists")

// isNoRows reports whether err is the empty-result sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
