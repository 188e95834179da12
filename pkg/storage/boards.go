package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// BoardRepository handles database operations for discovered boards.
type BoardRepository struct {
	db *sqlx.DB
}

// NewBoardRepository creates a new board repository.
func NewBoardRepository(db *sqlx.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// ExistingCodes returns all known board codes in a single round trip.
func (r *BoardRepository) ExistingCodes(ctx context.Context) (map[string]struct{}, error) {
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, `SELECT board_code FROM boards`); err != nil {
		return nil, fmt.Errorf("select board codes: %w", err)
	}

	existing := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		existing[code] = struct{}{}
	}

	return existing, nil
}

// InsertBoards bulk-inserts boards, ignoring natural-key conflicts.
func (r *BoardRepository) InsertBoards(ctx context.Context, rows []Board) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO boards (board_code, board_title, meta_description, ws_board)
		VALUES (:board_code, :board_title, :meta_description, :ws_board)
		ON CONFLICT (board_code) DO NOTHING
	`

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("bulk insert boards: %w", err)
	}

	return nil
}
