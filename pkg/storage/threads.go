package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ThreadRepository handles database operations for catalog monitoring rows.
type ThreadRepository struct {
	db *sqlx.DB
}

// NewThreadRepository creates a new thread repository.
func NewThreadRepository(db *sqlx.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// ExistingIDs returns the subset of candidate thread IDs already stored for a
// board, resolved in one query.
func (r *ThreadRepository) ExistingIDs(ctx context.Context, board string, ids []int64) (map[int64]struct{}, error) {
	if len(ids) == 0 {
		return map[int64]struct{}{}, nil
	}

	var found []int64

	query := `SELECT thread_id FROM threads WHERE board_code = $1 AND thread_id = ANY($2)`
	if err := r.db.SelectContext(ctx, &found, query, board, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("select thread ids: %w", err)
	}

	existing := make(map[int64]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}

	return existing, nil
}

// UpsertCatalog writes thread monitoring rows last-write-wins: new threads are
// inserted, known threads get their counters and watermark replaced.
func (r *ThreadRepository) UpsertCatalog(ctx context.Context, rows []Thread) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO threads (board_code, thread_id, title, excerpt, created_time, last_modified, replies, images)
		VALUES (:board_code, :thread_id, :title, :excerpt, :created_time, :last_modified, :replies, :images)
		ON CONFLICT (board_code, thread_id) DO UPDATE SET
			last_modified = EXCLUDED.last_modified,
			replies       = EXCLUDED.replies,
			images        = EXCLUDED.images
	`

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("upsert catalog threads: %w", err)
	}

	return nil
}
