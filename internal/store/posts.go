// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/ranklab/internal/models"
)

// CreatePost inserts a new post. The thread ID is inherited from the parent
// for replies and equals the post's own ID for top-level posts.
func (db *DB) CreatePost(ctx context.Context, authorID uuid.UUID, text string, parentID *uuid.UUID) (*models.Post, error) {
	post := &models.Post{
		ID:         uuid.New(),
		AuthorID:   authorID,
		Text:       text,
		ParentID:   parentID,
		CreatedAt:  now(),
		Visibility: models.VisibilityVisible,
	}

	post.ThreadID = post.ID
	if parentID != nil {
		parent, err := db.Post(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("resolve parent: %w", err)
		}
		post.ThreadID = parent.ThreadID
	}

	var parentVal any
	if parentID != nil {
		parentVal = parentID.String()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, text, parent_id, thread_id, created_at, visibility)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID.String(), post.AuthorID.String(), post.Text, parentVal,
		post.ThreadID.String(), post.CreatedAt, post.Visibility,
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	if parentID != nil {
		_, err = db.conn.ExecContext(ctx,
			`UPDATE posts SET reply_count = reply_count + 1 WHERE id = ?`,
			parentID.String(),
		)
		if err != nil {
			db.logger.Warn().Err(err).Msg("reply counter update failed")
		}
	}
	return post, nil
}

const postColumns = `id, author_id, text, parent_id, thread_id, created_at,
	like_count, reply_count, repost_count, view_count, visibility`

// Post returns one post, or ErrNotFound.
func (db *DB) Post(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, postID.String(),
	)
	post, err := scanPost(row)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query post: %w", err)
	}
	return post, nil
}

// Posts returns the subset of the given posts that exist, keyed by ID.
func (db *DB) Posts(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]*models.Post, error) {
	if len(postIDs) == 0 {
		return map[uuid.UUID]*models.Post{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(postIDs)), ",")
	args := make([]any, len(postIDs))
	for i, id := range postIDs {
		args[i] = id.String()
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*models.Post, len(postIDs))
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out[post.ID] = post
	}
	return out, rows.Err()
}

// AllPosts returns every stored post. Used by the batch learning tier and the
// embedding backfill.
func (db *DB) AllPosts(ctx context.Context) ([]*models.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// RecentByAuthors returns recent visible top-level posts by the given
// authors, most recent first with ID as the deterministic tie-break.
func (db *DB) RecentByAuthors(ctx context.Context, authors []uuid.UUID, limit int) ([]*models.Post, error) {
	if len(authors) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(authors)), ",")
	args := make([]any, 0, len(authors)+1)
	for _, id := range authors {
		args = append(args, id.String())
	}
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE author_id IN (`+placeholders+`)
		   AND parent_id IS NULL
		   AND visibility = 'visible'
		 ORDER BY created_at DESC, id ASC
		 LIMIT ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// SetVisibility updates a post's moderation state.
func (db *DB) SetVisibility(ctx context.Context, postID uuid.UUID, visibility string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE posts SET visibility = ? WHERE id = ?`,
		visibility, postID.String(),
	)
	if err != nil {
		return fmt.Errorf("update visibility: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PostCount returns the number of stored posts.
func (db *DB) PostCount(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanPost.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post             models.Post
		idStr, authorStr string
		parentStr        sql.NullString
		threadStr        string
	)
	err := row.Scan(
		&idStr, &authorStr, &post.Text, &parentStr, &threadStr, &post.CreatedAt,
		&post.LikeCount, &post.ReplyCount, &post.RepostCount, &post.ViewCount,
		&post.Visibility,
	)
	if err != nil {
		return nil, err
	}

	if post.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse post id: %w", err)
	}
	if post.AuthorID, err = uuid.Parse(authorStr); err != nil {
		return nil, fmt.Errorf("parse author id: %w", err)
	}
	if post.ThreadID, err = uuid.Parse(threadStr); err != nil {
		return nil, fmt.Errorf("parse thread id: %w", err)
	}
	if parentStr.Valid {
		parent, err := uuid.Parse(parentStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse parent id: %w", err)
		}
		post.ParentID = &parent
	}
	return &post, nil
}

func collectPosts(rows *sql.Rows) ([]*models.Post, error) {
	var out []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, post)
	}
	return out, rows.Err()
}
