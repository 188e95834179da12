package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/toxicrawl/toxicrawl/pkg/scoring"
	"github.com/toxicrawl/toxicrawl/pkg/tasks"
)

// HandleToxicity scores one batch of text fragments. The payload carries the
// text inline, so scoring needs no storage reads and a batch can be replayed
// verbatim. Per-item failures are absorbed by the pipeline; the job itself
// only fails (and retries) on storage errors or cancellation.
func (h *Handler) HandleToxicity(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ToxicityPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	items := make([]scoring.Item, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, scoring.Item{
			CollectionID: payload.CollectionID,
			ItemID:       item.ItemID,
			Text:         item.Text,
			Language:     payload.Language,
		})
	}

	stats, err := h.pipeline.ScoreBatch(ctx, items)
	if err != nil {
		return fmt.Errorf("score batch for %s: %w", payload.CollectionID, err)
	}

	h.log.WithFields(logrus.Fields{
		"collection": payload.CollectionID,
		"scored":     stats.Scored,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
	}).Info("Scoring batch complete")

	return nil
}
