package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/toxicrawl/toxicrawl/pkg/chanapi"
	"github.com/toxicrawl/toxicrawl/pkg/observability"
	"github.com/toxicrawl/toxicrawl/pkg/redditapi"
	"github.com/toxicrawl/toxicrawl/pkg/scoring"
	"github.com/toxicrawl/toxicrawl/pkg/storage"
	"github.com/toxicrawl/toxicrawl/pkg/tasks"
)

// ChanAPI is the imageboard listing surface the handlers consume.
type ChanAPI interface {
	Boards(ctx context.Context) ([]chanapi.Board, error)
	Catalog(ctx context.Context, board string) ([]chanapi.CatalogPage, error)
	Thread(ctx context.Context, board string, threadID int64) ([]chanapi.Post, error)
}

// RedditAPI is the link-aggregator listing surface the handlers consume.
type RedditAPI interface {
	NewPosts(ctx context.Context, subreddit, after string) (redditapi.Page[redditapi.PostData], error)
	Comments(ctx context.Context, subreddit, after string) (redditapi.Page[redditapi.CommentData], error)
}

// Scheduler enqueues follow-up jobs: thread fanout, scoring batches and the
// delayed self re-enqueue that keeps each crawl loop alive.
type Scheduler interface {
	ScheduleCatalogCrawl(p tasks.CatalogCrawlPayload, delay time.Duration) error
	ScheduleThreadCrawl(p tasks.ThreadCrawlPayload, delay time.Duration) error
	ScheduleSubredditPosts(p tasks.SubredditPostsPayload, delay time.Duration) error
	ScheduleSubredditComments(p tasks.SubredditCommentsPayload, delay time.Duration) error
	ScheduleToxicity(p tasks.ToxicityPayload, delay time.Duration) error
}

// BoardStore persists discovered boards.
type BoardStore interface {
	ExistingCodes(ctx context.Context) (map[string]struct{}, error)
	InsertBoards(ctx context.Context, rows []storage.Board) error
}

// ThreadStore persists catalog monitoring rows.
type ThreadStore interface {
	UpsertCatalog(ctx context.Context, rows []storage.Thread) error
}

// PostStore persists imageboard posts.
type PostStore interface {
	ExistingNos(ctx context.Context, board string, nos []int64) (map[int64]struct{}, error)
	InsertPosts(ctx context.Context, rows []storage.Post) error
}

// SubredditPostStore persists link-aggregator submissions.
type SubredditPostStore interface {
	ExistingIDs(ctx context.Context, subreddit string, ids []string) (map[string]struct{}, error)
	InsertPosts(ctx context.Context, rows []storage.SubredditPost) error
}

// SubredditCommentStore persists comment-stream rows.
type SubredditCommentStore interface {
	ExistingIDs(ctx context.Context, subreddit string, ids []string) (map[string]struct{}, error)
	InsertComments(ctx context.Context, rows []storage.SubredditComment) error
}

// ScoringPipeline runs a scoring batch end to end.
type ScoringPipeline interface {
	ScoreBatch(ctx context.Context, items []scoring.Item) (scoring.Stats, error)
}

// Stores bundles the repositories the handlers write through.
type Stores struct {
	Boards            BoardStore
	Threads           ThreadStore
	Posts             PostStore
	SubredditPosts    SubredditPostStore
	SubredditComments SubredditCommentStore
}

// Handler processes crawl and scoring tasks. All handlers are idempotent
// under at-least-once delivery: persistence dedupes on natural keys and score
// writes are upserts, so a redelivered job re-does work but never duplicates
// rows.
type Handler struct {
	log       logrus.FieldLogger
	config    *Config
	chans     ChanAPI
	reddit    RedditAPI
	stores    Stores
	scheduler Scheduler
	pipeline  ScoringPipeline
}

// NewHandler creates a task handler.
func NewHandler(
	log logrus.FieldLogger,
	cfg *Config,
	chans ChanAPI,
	reddit RedditAPI,
	stores Stores,
	scheduler Scheduler,
	pipeline ScoringPipeline,
) *Handler {
	return &Handler{
		log:       log.WithField("component", "handler"),
		config:    cfg,
		chans:     chans,
		reddit:    reddit,
		stores:    stores,
		scheduler: scheduler,
		pipeline:  pipeline,
	}
}

// Routes returns the task type to handler mapping for the mux.
func (h *Handler) Routes() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		tasks.TypeBoardList:         h.instrument(tasks.TypeBoardList, h.HandleBoardList),
		tasks.TypeCatalogCrawl:      h.instrument(tasks.TypeCatalogCrawl, h.HandleCatalogCrawl),
		tasks.TypeThreadCrawl:       h.instrument(tasks.TypeThreadCrawl, h.HandleThreadCrawl),
		tasks.TypeSubredditPosts:    h.instrument(tasks.TypeSubredditPosts, h.HandleSubredditPosts),
		tasks.TypeSubredditComments: h.instrument(tasks.TypeSubredditComments, h.HandleSubredditComments),
		tasks.TypeToxicity:          h.instrument(tasks.TypeToxicity, h.HandleToxicity),
	}
}

func (h *Handler) instrument(taskType string, fn asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()

		err := fn(ctx, t)

		status := "success"
		if err != nil {
			status = "failed"
			observability.RecordError("handler", taskType)
		}

		observability.RecordJob(taskType, status, time.Since(start).Seconds())

		return err
	}
}

// decodePayload unmarshals and validates a task payload. Malformed payloads
// are permanent: retrying the same bytes cannot succeed, so the job is failed
// without retry.
func decodePayload[P interface{ Validate() error }](t *asynq.Task, out *P) error {
	if err := json.Unmarshal(t.Payload(), out); err != nil {
		return fmt.Errorf("unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	if err := (*out).Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	return nil
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
