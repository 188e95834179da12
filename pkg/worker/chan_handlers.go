package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/toxicrawl/toxicrawl/pkg/changeset"
	"github.com/toxicrawl/toxicrawl/pkg/httpx"
	"github.com/toxicrawl/toxicrawl/pkg/observability"
	"github.com/toxicrawl/toxicrawl/pkg/scoring"
	"github.com/toxicrawl/toxicrawl/pkg/storage"
	"github.com/toxicrawl/toxicrawl/pkg/tasks"
)

// maxWatermarkEntries caps the watermark state carried between catalog
// cycles. The remote catalog holds at most ~200 live threads, so the most
// recent 400 markers comfortably cover everything still diffable; older
// threads have fallen off the catalog and can only reappear as "new".
const maxWatermarkEntries = 400

// HandleBoardList refreshes the board listing, inserting boards not yet known.
func (h *Handler) HandleBoardList(ctx context.Context, t *asynq.Task) error {
	var payload tasks.BoardListPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	log := h.log.WithField("cycle", payload.CycleID)

	boards, err := h.chans.Boards(ctx)
	if err != nil {
		return fmt.Errorf("fetch board listing: %w", err)
	}

	observability.RecordFetched("boards", "board", len(boards))

	rows := make([]storage.Board, 0, len(boards))
	for _, b := range boards {
		rows = append(rows, storage.Board{
			BoardCode:       b.Board,
			BoardTitle:      b.Title,
			MetaDescription: b.MetaDescription,
			WsBoard:         b.WsBoard,
		})
	}

	fresh, err := storage.PersistNew(ctx, rows,
		func(r storage.Board) string { return r.BoardCode },
		func(ctx context.Context, _ []string) (map[string]struct{}, error) {
			return h.stores.Boards.ExistingCodes(ctx)
		},
		h.stores.Boards.InsertBoards,
	)
	if err != nil {
		return fmt.Errorf("persist boards: %w", err)
	}

	observability.RecordInserted("boards", "board", len(fresh))
	log.WithFields(logrus.Fields{
		"fetched": len(boards),
		"new":     len(fresh),
	}).Info("Board listing refreshed")

	return nil
}

// HandleCatalogCrawl diffs one board's catalog against the watermarks carried
// in the job payload, fans out thread crawls for everything new or bumped,
// and re-enqueues itself with the updated watermarks.
func (h *Handler) HandleCatalogCrawl(ctx context.Context, t *asynq.Task) error {
	var payload tasks.CatalogCrawlPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	log := h.log.WithFields(logrus.Fields{
		"board": payload.Board,
		"cycle": payload.CycleID,
	})

	pages, err := h.chans.Catalog(ctx, payload.Board)
	if err != nil {
		return fmt.Errorf("fetch catalog for /%s/: %w", payload.Board, err)
	}

	snapshot := make([]changeset.Item, 0, len(pages)*16)
	rows := make([]storage.Thread, 0, len(pages)*16)

	for _, page := range pages {
		for _, thread := range page.Threads {
			snapshot = append(snapshot, changeset.Item{
				ID:           thread.No,
				LastModified: thread.LastModified,
			})
			rows = append(rows, storage.Thread{
				BoardCode:    payload.Board,
				ThreadID:     thread.No,
				Title:        thread.Subject,
				Excerpt:      thread.Comment,
				CreatedTime:  thread.Time,
				LastModified: thread.LastModified,
				Replies:      thread.Replies,
				Images:       thread.Images,
			})
		}
	}

	observability.RecordFetched(payload.Board, "thread", len(snapshot))

	result := changeset.Detect(snapshot, changeset.State(payload.Watermarks))
	if result.Dropped > 0 {
		log.WithField("dropped", result.Dropped).Warn("Dropped malformed catalog entries")
	}

	observability.RecordChanged(payload.Board, len(result.ChangedIDs))

	if err := h.stores.Threads.UpsertCatalog(ctx, rows); err != nil {
		return fmt.Errorf("upsert catalog rows: %w", err)
	}

	for _, threadID := range result.ChangedIDs {
		if err := h.scheduler.ScheduleThreadCrawl(tasks.ThreadCrawlPayload{
			Board:         payload.Board,
			ThreadID:      threadID,
			ScoreToxicity: payload.ScoreToxicity,
			CycleID:       payload.CycleID,
		}, 0); err != nil {
			return fmt.Errorf("fan out thread %d: %w", threadID, err)
		}
	}

	next := result.Next.Trim(maxWatermarkEntries)
	observability.SetWatermarkEntries(payload.Board, len(next))

	delay, err := h.config.CatalogDelay()
	if err != nil {
		return err
	}

	if err := h.scheduler.ScheduleCatalogCrawl(tasks.CatalogCrawlPayload{
		Board:         payload.Board,
		Watermarks:    next,
		ScoreToxicity: payload.ScoreToxicity,
		CycleID:       payload.CycleID,
	}, delay); err != nil {
		return fmt.Errorf("re-enqueue catalog crawl: %w", err)
	}

	log.WithFields(logrus.Fields{
		"threads":    len(snapshot),
		"changed":    len(result.ChangedIDs),
		"watermarks": len(next),
		"next_in":    delay,
	}).Info("Catalog cycle complete")

	return nil
}

// HandleThreadCrawl fetches one thread and persists the posts not yet stored.
// A thread that 404s has been pruned or archived between the catalog snapshot
// and now; that is a normal outcome, not an error.
func (h *Handler) HandleThreadCrawl(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ThreadCrawlPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	log := h.log.WithFields(logrus.Fields{
		"board":  payload.Board,
		"thread": payload.ThreadID,
		"cycle":  payload.CycleID,
	})

	posts, err := h.chans.Thread(ctx, payload.Board, payload.ThreadID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			log.Info("Thread gone, skipping")
			return nil
		}

		return fmt.Errorf("fetch thread %d: %w", payload.ThreadID, err)
	}

	observability.RecordFetched(payload.Board, "post", len(posts))

	rows := make([]storage.Post, 0, len(posts))
	for _, post := range posts {
		rows = append(rows, storage.Post{
			BoardCode: payload.Board,
			PostNo:    post.No,
			ThreadID:  payload.ThreadID,
			ReplyTo:   post.Resto,
			Author:    post.Name,
			Subject:   post.Subject,
			BodyHTML:  post.Comment,
			PostedAt:  post.Time,
			Country:   post.Country,
		})
	}

	fresh, err := storage.PersistNew(ctx, rows,
		func(r storage.Post) int64 { return r.PostNo },
		func(ctx context.Context, nos []int64) (map[int64]struct{}, error) {
			return h.stores.Posts.ExistingNos(ctx, payload.Board, nos)
		},
		h.stores.Posts.InsertPosts,
	)
	if err != nil {
		return fmt.Errorf("persist posts: %w", err)
	}

	observability.RecordInserted(payload.Board, "post", len(fresh))
	log.WithFields(logrus.Fields{
		"fetched": len(posts),
		"new":     len(fresh),
	}).Info("Thread collected")

	if !payload.ScoreToxicity {
		return nil
	}

	items := make([]tasks.ToxicityItem, 0, len(fresh))

	for _, row := range fresh {
		if row.BodyHTML == "" {
			continue
		}

		items = append(items, tasks.ToxicityItem{
			ItemID: scoring.ItemID(row.PostNo),
			Text:   row.BodyHTML,
		})
	}

	if len(items) == 0 {
		return nil
	}

	if err := h.scheduler.ScheduleToxicity(tasks.ToxicityPayload{
		CollectionID: payload.Board,
		Items:        items,
	}, 0); err != nil {
		return fmt.Errorf("enqueue scoring batch: %w", err)
	}

	return nil
}
