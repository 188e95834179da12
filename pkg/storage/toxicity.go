package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ToxicityRepository handles database operations for toxicity scores.
type ToxicityRepository struct {
	db *sqlx.DB
}

// NewToxicityRepository creates a new toxicity repository.
func NewToxicityRepository(db *sqlx.DB) *ToxicityRepository {
	return &ToxicityRepository{db: db}
}

// UpsertScores writes scored items with all-columns-replace semantics keyed
// by (collection_id, item_id), so re-scoring the same item under at-least-once
// delivery keeps exactly one row. scored_at is set server-side to the time of
// the most recent successful scoring attempt. Nil score pointers persist as
// NULL, never zero.
func (r *ToxicityRepository) UpsertScores(ctx context.Context, rows []ToxicityScore) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO toxicity_scores (collection_id, item_id, language, toxicity, severe_toxicity, identity_attack, insult, threat, scored_at)
		VALUES (:collection_id, :item_id, :language, :toxicity, :severe_toxicity, :identity_attack, :insult, :threat, NOW())
		ON CONFLICT (collection_id, item_id) DO UPDATE SET
			language        = EXCLUDED.language,
			toxicity        = EXCLUDED.toxicity,
			severe_toxicity = EXCLUDED.severe_toxicity,
			identity_attack = EXCLUDED.identity_attack,
			insult          = EXCLUDED.insult,
			threat          = EXCLUDED.threat,
			scored_at       = NOW()
	`

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("upsert toxicity scores: %w", err)
	}

	return nil
}
