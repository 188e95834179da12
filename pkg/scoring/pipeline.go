// Package scoring drives text fragments through normalize → score → persist,
// with bounded in-memory batching of the idempotent score upserts.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/toxicrawl/toxicrawl/pkg/observability"
	"github.com/toxicrawl/toxicrawl/pkg/perspective"
	"github.com/toxicrawl/toxicrawl/pkg/storage"
)

// DefaultFlushSize caps how many scored items accumulate in memory before a
// bulk upsert, bounding memory and transaction size regardless of input batch
// size.
const DefaultFlushSize = 100

// Item is one text fragment to score.
type Item struct {
	CollectionID string
	ItemID       string
	Text         string
	Language     string
}

// Scorer is the remote scoring call.
type Scorer interface {
	Score(ctx context.Context, text, language string) (perspective.Scores, error)
}

// ScoreWriter persists scored batches idempotently.
type ScoreWriter interface {
	UpsertScores(ctx context.Context, rows []storage.ToxicityScore) error
}

// Stats summarizes one batch run.
type Stats struct {
	Scored  int
	Skipped int
	Failed  int
}

// Pipeline scores batches of text fragments. Per item the state machine is
// pending → normalized → scored → persisted, with skipped reachable after
// normalization (empty text) and failed after scoring (retries exhausted or
// 404). Failed items are dropped from the batch, logged, and only re-scored
// if an external caller re-submits them.
type Pipeline struct {
	scorer    Scorer
	writer    ScoreWriter
	flushSize int
	log       logrus.FieldLogger
}

// NewPipeline creates a scoring pipeline with the default flush size.
func NewPipeline(log logrus.FieldLogger, scorer Scorer, writer ScoreWriter) *Pipeline {
	return &Pipeline{
		scorer:    scorer,
		writer:    writer,
		flushSize: DefaultFlushSize,
		log:       log.WithField("component", "scoring"),
	}
}

// WithFlushSize overrides the persistence batch threshold.
func (p *Pipeline) WithFlushSize(n int) *Pipeline {
	if n > 0 {
		p.flushSize = n
	}

	return p
}

// ScoreBatch runs the whole batch. Scoring failures skip the single item;
// a storage failure aborts the batch and fails the enclosing job.
func (p *Pipeline) ScoreBatch(ctx context.Context, items []Item) (Stats, error) {
	var stats Stats

	pending := make([]storage.ToxicityScore, 0, p.flushSize)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		text := perspective.Normalize(item.Text)
		if text == "" {
			stats.Skipped++
			observability.RecordScore(item.CollectionID, "skipped")
			p.log.WithFields(logrus.Fields{
				"collection": item.CollectionID,
				"item":       item.ItemID,
			}).Debug("Empty text after normalization, skipping")

			continue
		}

		scores, err := p.scorer.Score(ctx, text, item.Language)
		if err != nil {
			if storageAbort(err) {
				return stats, err
			}

			stats.Failed++
			observability.RecordScore(item.CollectionID, "failed")
			p.log.WithError(err).WithFields(logrus.Fields{
				"collection": item.CollectionID,
				"item":       item.ItemID,
			}).Warn("Scoring failed, dropping item from batch")

			continue
		}

		stats.Scored++
		observability.RecordScore(item.CollectionID, "scored")

		language := item.Language
		if language == "" {
			language = perspective.DefaultLanguage
		}

		pending = append(pending, storage.ToxicityScore{
			CollectionID:   item.CollectionID,
			ItemID:         item.ItemID,
			Language:       language,
			Toxicity:       scores.Toxicity,
			SevereToxicity: scores.SevereToxicity,
			IdentityAttack: scores.IdentityAttack,
			Insult:         scores.Insult,
			Threat:         scores.Threat,
		})

		if len(pending) >= p.flushSize {
			if err := p.flush(ctx, pending); err != nil {
				return stats, err
			}

			pending = pending[:0]
		}
	}

	if err := p.flush(ctx, pending); err != nil {
		return stats, err
	}

	return stats, nil
}

func (p *Pipeline) flush(ctx context.Context, rows []storage.ToxicityScore) error {
	if len(rows) == 0 {
		return nil
	}

	if err := p.writer.UpsertScores(ctx, rows); err != nil {
		return fmt.Errorf("persist scored batch: %w", err)
	}

	p.log.WithField("rows", len(rows)).Info("Persisted scored batch")

	return nil
}

// storageAbort distinguishes context cancellation, which must fail the whole
// job, from per-item scoring failures.
func storageAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ItemID formats an imageboard post number as a score item ID.
func ItemID(postNo int64) string {
	return strconv.FormatInt(postNo, 10)
}
