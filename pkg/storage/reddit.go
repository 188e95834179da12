package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SubredditPostRepository handles database operations for submissions.
type SubredditPostRepository struct {
	db *sqlx.DB
}

// NewSubredditPostRepository creates a new submission repository.
func NewSubredditPostRepository(db *sqlx.DB) *SubredditPostRepository {
	return &SubredditPostRepository{db: db}
}

// ExistingIDs returns the subset of candidate post IDs already stored for a
// subreddit, resolved in one query.
func (r *SubredditPostRepository) ExistingIDs(ctx context.Context, subreddit string, ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	var found []string

	query := `SELECT post_id FROM subreddit_posts WHERE subreddit = $1 AND post_id = ANY($2)`
	if err := r.db.SelectContext(ctx, &found, query, subreddit, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select subreddit post ids: %w", err)
	}

	existing := make(map[string]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}

	return existing, nil
}

// InsertPosts bulk-inserts submissions, ignoring natural-key conflicts.
func (r *SubredditPostRepository) InsertPosts(ctx context.Context, rows []SubredditPost) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO subreddit_posts (subreddit, post_id, fullname, title, selftext, author, score, num_comments, created_utc, permalink)
		VALUES (:subreddit, :post_id, :fullname, :title, :selftext, :author, :score, :num_comments, :created_utc, :permalink)
		ON CONFLICT (subreddit, post_id) DO NOTHING
	`

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("bulk insert subreddit posts: %w", err)
	}

	return nil
}

// SubredditCommentRepository handles database operations for the comment stream.
type SubredditCommentRepository struct {
	db *sqlx.DB
}

// NewSubredditCommentRepository creates a new comment repository.
func NewSubredditCommentRepository(db *sqlx.DB) *SubredditCommentRepository {
	return &SubredditCommentRepository{db: db}
}

// ExistingIDs returns the subset of candidate comment IDs already stored for
// a subreddit, resolved in one query.
func (r *SubredditCommentRepository) ExistingIDs(ctx context.Context, subreddit string, ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	var found []string

	query := `SELECT comment_id FROM subreddit_comments WHERE subreddit = $1 AND comment_id = ANY($2)`
	if err := r.db.SelectContext(ctx, &found, query, subreddit, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select subreddit comment ids: %w", err)
	}

	existing := make(map[string]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}

	return existing, nil
}

// InsertComments bulk-inserts comments, ignoring natural-key conflicts.
func (r *SubredditCommentRepository) InsertComments(ctx context.Context, rows []SubredditComment) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO subreddit_comments (subreddit, comment_id, link_id, parent_id, author, body, score, created_utc)
		VALUES (:subreddit, :comment_id, :link_id, :parent_id, :author, :body, :score, :created_utc)
		ON CONFLICT (subreddit, comment_id) DO NOTHING
	`

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("bulk insert subreddit comments: %w", err)
	}

	return nil
}
