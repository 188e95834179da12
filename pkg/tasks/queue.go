package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// Default enqueue options. Jobs are retried a small fixed number of times by
// the broker; HTTP-level retries against the upstream APIs happen inside the
// handler instead.
const (
	defaultMaxRetry = 3
	crawlTimeout    = 10 * time.Minute
	scoringTimeout  = 30 * time.Minute
)

// QueueManager enqueues crawl and scoring jobs. A zero delay makes the job
// eligible immediately; a positive delay is honored by the broker, which is
// how crawl loops pace themselves without any in-process timers.
type QueueManager struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewQueueManager creates a new queue manager.
func NewQueueManager(redisOpt *asynq.RedisClientOpt) *QueueManager {
	return &QueueManager{
		client:    asynq.NewClient(*redisOpt),
		inspector: asynq.NewInspector(*redisOpt),
	}
}

type payload interface {
	Validate() error
}

// schedule marshals and enqueues a validated payload on the given queue,
// eligible after delay.
func (q *QueueManager) schedule(taskType, queue string, p payload, delay time.Duration) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}

	timeout := crawlTimeout
	if taskType == TypeToxicity {
		timeout = scoringTimeout
	}

	opts := []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(defaultMaxRetry),
		asynq.Timeout(timeout),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	if _, err := q.client.Enqueue(asynq.NewTask(taskType, data), opts...); err != nil {
		return fmt.Errorf("enqueue %s on %s: %w", taskType, queue, err)
	}

	return nil
}

// ScheduleBoardList enqueues a board listing refresh.
func (q *QueueManager) ScheduleBoardList(p BoardListPayload, delay time.Duration) error {
	return q.schedule(TypeBoardList, QueueBoardList, p, delay)
}

// ScheduleCatalogCrawl enqueues a catalog diff for one board.
func (q *QueueManager) ScheduleCatalogCrawl(p CatalogCrawlPayload, delay time.Duration) error {
	return q.schedule(TypeCatalogCrawl, QueueCatalog(p.Board), p, delay)
}

// ScheduleThreadCrawl enqueues a thread collection for one board.
func (q *QueueManager) ScheduleThreadCrawl(p ThreadCrawlPayload, delay time.Duration) error {
	return q.schedule(TypeThreadCrawl, QueueThreads(p.Board), p, delay)
}

// ScheduleSubredditPosts enqueues a submission crawl for one subreddit.
func (q *QueueManager) ScheduleSubredditPosts(p SubredditPostsPayload, delay time.Duration) error {
	return q.schedule(TypeSubredditPosts, QueueSubredditPosts(p.Subreddit), p, delay)
}

// ScheduleSubredditComments enqueues a comment crawl for one subreddit.
func (q *QueueManager) ScheduleSubredditComments(p SubredditCommentsPayload, delay time.Duration) error {
	return q.schedule(TypeSubredditComments, QueueSubredditComments(p.Subreddit), p, delay)
}

// ScheduleToxicity enqueues a scoring batch for one collection.
func (q *QueueManager) ScheduleToxicity(p ToxicityPayload, delay time.Duration) error {
	return q.schedule(TypeToxicity, QueueToxicity(p.CollectionID), p, delay)
}

// GetQueueStats returns queue statistics.
func (q *QueueManager) GetQueueStats(queueName string) (*asynq.QueueInfo, error) {
	info, err := q.inspector.GetQueueInfo(queueName)
	if err != nil {
		// A queue that has never seen a task is empty, not an error.
		if errors.Is(err, asynq.ErrQueueNotFound) || strings.Contains(err.Error(), "does not exist") {
			return &asynq.QueueInfo{Queue: queueName}, nil
		}

		return nil, err
	}

	return info, nil
}

// Close closes the queue manager.
func (q *QueueManager) Close() error {
	return q.client.Close()
}
