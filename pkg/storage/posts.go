package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostRepository handles database operations for imageboard posts.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

// ExistingNos returns the subset of candidate post numbers already stored for
// a board, resolved in one query.
func (r *PostRepository) ExistingNos(ctx context.Context, board string, nos []int64) (map[int64]struct{}, error) {
	if len(nos) == 0 {
		return map[int64]struct{}{}, nil
	}

	var found []int64

	query := `SELECT post_no FROM posts WHERE board_code = $1 AND post_no = ANY($2)`
	if err := r.db.SelectContext(ctx, &found, query, board, pq.Array(nos)); err != nil {
		return nil, fmt.Errorf("select post nos: %w", err)
	}

	existing := make(map[int64]struct{}, len(found))
	for _, no := range found {
		existing[no] = struct{}{}
	}

	return existing, nil
}

// InsertPosts bulk-inserts posts, ignoring natural-key conflicts. The single
// multi-row statement keeps the batch atomic: either all rows land or none.
func (r *PostRepository) InsertPosts(ctx context.Context, rows []Post) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO posts (board_code, post_no, thread_id, reply_to, author, subject, body_html, posted_at, country)
		VALUES (:board_code, :post_no, :thread_id, :reply_to, :author, :subject, :body_html, :posted_at, :country)
		ON CONFLICT (board_code, post_no) DO NOTHING
	`

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("bulk insert posts: %w", err)
	}

	return nil
}

// Unscored returns up to limit posts with non-empty text that have no
// toxicity row yet, oldest first. Used by the backfill producer.
func (r *PostRepository) Unscored(ctx context.Context, board string, limit int) ([]UnscoredPost, error) {
	var rows []UnscoredPost

	query := `
		SELECT p.board_code, p.post_no, p.reply_to, p.body_html
		FROM posts p
		LEFT JOIN toxicity_scores ts
			ON ts.collection_id = p.board_code AND ts.item_id = p.post_no::TEXT
		WHERE p.board_code = $1 AND p.body_html <> '' AND ts.item_id IS NULL
		ORDER BY p.post_no
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &rows, query, board, limit); err != nil {
		return nil, fmt.Errorf("select unscored posts: %w", err)
	}

	return rows, nil
}
