package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/toxicrawl/toxicrawl/pkg/observability"
	"github.com/toxicrawl/toxicrawl/pkg/storage"
	"github.com/toxicrawl/toxicrawl/pkg/tasks"
)

// HandleSubredditPosts pages through one subreddit's newest submissions,
// stopping at the configured page cap or as soon as a whole page is already
// stored (the frontier from the previous cycle), then re-enqueues itself.
func (h *Handler) HandleSubredditPosts(ctx context.Context, t *asynq.Task) error {
	var payload tasks.SubredditPostsPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	log := h.log.WithFields(logrus.Fields{
		"subreddit": payload.Subreddit,
		"cycle":     payload.CycleID,
	})

	var (
		after   string
		fetched int
		fresh   []storage.SubredditPost
	)

	for page := 0; page < h.config.MaxPages; page++ {
		if page > 0 {
			if err := sleep(ctx, h.config.PageDelay); err != nil {
				return err
			}
		}

		listing, err := h.reddit.NewPosts(ctx, payload.Subreddit, after)
		if err != nil {
			return fmt.Errorf("fetch submissions page %d: %w", page, err)
		}

		fetched += len(listing.Items)

		rows := make([]storage.SubredditPost, 0, len(listing.Items))
		for _, item := range listing.Items {
			rows = append(rows, storage.SubredditPost{
				Subreddit:   payload.Subreddit,
				PostID:      item.ID,
				Fullname:    item.Fullname,
				Title:       item.Title,
				Selftext:    item.Selftext,
				Author:      item.Author,
				Score:       item.Score,
				NumComments: item.NumComments,
				CreatedUTC:  int64(item.CreatedUTC),
				Permalink:   item.Permalink,
			})
		}

		inserted, err := storage.PersistNew(ctx, rows,
			func(r storage.SubredditPost) string { return r.PostID },
			func(ctx context.Context, ids []string) (map[string]struct{}, error) {
				return h.stores.SubredditPosts.ExistingIDs(ctx, payload.Subreddit, ids)
			},
			h.stores.SubredditPosts.InsertPosts,
		)
		if err != nil {
			return fmt.Errorf("persist submissions: %w", err)
		}

		fresh = append(fresh, inserted...)

		// An all-known page means the previous cycle's frontier: everything
		// deeper is older still.
		if len(listing.Items) > 0 && len(inserted) == 0 {
			break
		}

		after = listing.After
		if after == "" {
			break
		}
	}

	observability.RecordFetched(payload.Subreddit, "subreddit_post", fetched)
	observability.RecordInserted(payload.Subreddit, "subreddit_post", len(fresh))

	if payload.ScoreToxicity {
		items := make([]tasks.ToxicityItem, 0, len(fresh))

		for _, row := range fresh {
			text := submissionText(row)
			if text == "" {
				continue
			}

			items = append(items, tasks.ToxicityItem{ItemID: row.PostID, Text: text})
		}

		if len(items) > 0 {
			if err := h.scheduler.ScheduleToxicity(tasks.ToxicityPayload{
				CollectionID: payload.Subreddit,
				Items:        items,
			}, 0); err != nil {
				return fmt.Errorf("enqueue scoring batch: %w", err)
			}
		}
	}

	delay, err := h.config.SubredditDelay()
	if err != nil {
		return err
	}

	if err := h.scheduler.ScheduleSubredditPosts(payload, delay); err != nil {
		return fmt.Errorf("re-enqueue submission crawl: %w", err)
	}

	log.WithFields(logrus.Fields{
		"fetched": fetched,
		"new":     len(fresh),
		"next_in": delay,
	}).Info("Submission cycle complete")

	return nil
}

// HandleSubredditComments pages through one subreddit's comment stream with
// the same frontier-stop pagination as submissions.
func (h *Handler) HandleSubredditComments(ctx context.Context, t *asynq.Task) error {
	var payload tasks.SubredditCommentsPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	log := h.log.WithFields(logrus.Fields{
		"subreddit": payload.Subreddit,
		"cycle":     payload.CycleID,
	})

	var (
		after   string
		fetched int
		fresh   []storage.SubredditComment
	)

	for page := 0; page < h.config.MaxPages; page++ {
		if page > 0 {
			if err := sleep(ctx, h.config.PageDelay); err != nil {
				return err
			}
		}

		listing, err := h.reddit.Comments(ctx, payload.Subreddit, after)
		if err != nil {
			return fmt.Errorf("fetch comments page %d: %w", page, err)
		}

		fetched += len(listing.Items)

		rows := make([]storage.SubredditComment, 0, len(listing.Items))
		for _, item := range listing.Items {
			rows = append(rows, storage.SubredditComment{
				Subreddit:  payload.Subreddit,
				CommentID:  item.ID,
				LinkID:     item.LinkID,
				ParentID:   item.ParentID,
				Author:     item.Author,
				Body:       item.Body,
				Score:      item.Score,
				CreatedUTC: int64(item.CreatedUTC),
			})
		}

		inserted, err := storage.PersistNew(ctx, rows,
			func(r storage.SubredditComment) string { return r.CommentID },
			func(ctx context.Context, ids []string) (map[string]struct{}, error) {
				return h.stores.SubredditComments.ExistingIDs(ctx, payload.Subreddit, ids)
			},
			h.stores.SubredditComments.InsertComments,
		)
		if err != nil {
			return fmt.Errorf("persist comments: %w", err)
		}

		fresh = append(fresh, inserted...)

		if len(listing.Items) > 0 && len(inserted) == 0 {
			break
		}

		after = listing.After
		if after == "" {
			break
		}
	}

	observability.RecordFetched(payload.Subreddit, "comment", fetched)
	observability.RecordInserted(payload.Subreddit, "comment", len(fresh))

	if payload.ScoreToxicity {
		items := make([]tasks.ToxicityItem, 0, len(fresh))

		for _, row := range fresh {
			if row.Body == "" {
				continue
			}

			items = append(items, tasks.ToxicityItem{ItemID: row.CommentID, Text: row.Body})
		}

		if len(items) > 0 {
			if err := h.scheduler.ScheduleToxicity(tasks.ToxicityPayload{
				CollectionID: payload.Subreddit,
				Items:        items,
			}, 0); err != nil {
				return fmt.Errorf("enqueue scoring batch: %w", err)
			}
		}
	}

	delay, err := h.config.SubredditDelay()
	if err != nil {
		return err
	}

	if err := h.scheduler.ScheduleSubredditComments(payload, delay); err != nil {
		return fmt.Errorf("re-enqueue comment crawl: %w", err)
	}

	log.WithFields(logrus.Fields{
		"fetched": fetched,
		"new":     len(fresh),
		"next_in": delay,
	}).Info("Comment cycle complete")

	return nil
}

// submissionText joins a submission's title and body for scoring. Link posts
// have no selftext; their title alone still carries scoreable language.
func submissionText(row storage.SubredditPost) string {
	if row.Selftext == "" {
		return row.Title
	}

	if row.Title == "" {
		return row.Selftext
	}

	return row.Title + "\n\n" + row.Selftext
}
