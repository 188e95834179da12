// Package tasks defines the typed job payloads exchanged over the broker and
// the delayed re-enqueue scheduler on top of it. Every payload has exactly one
// shape and is validated at the queue boundary; malformed jobs are rejected
// early with a typed error instead of being retried.
package tasks

import (
	"errors"
	"fmt"
)

// Task types routed by the worker mux.
const (
	// TypeBoardList refreshes the board listing.
	TypeBoardList = "crawl:board_list"
	// TypeCatalogCrawl diffs one board's catalog against its watermarks.
	TypeCatalogCrawl = "crawl:catalog"
	// TypeThreadCrawl collects the posts of one thread.
	TypeThreadCrawl = "crawl:thread"
	// TypeSubredditPosts pages through one subreddit's new submissions.
	TypeSubredditPosts = "crawl:subreddit_posts"
	// TypeSubredditComments pages through one subreddit's comment stream.
	TypeSubredditComments = "crawl:subreddit_comments"
	// TypeToxicity scores a batch of text fragments.
	TypeToxicity = "toxicity:score"
)

// Define static errors
var (
	// ErrInvalidPayload rejects malformed job payloads at the queue boundary.
	ErrInvalidPayload = errors.New("invalid job payload")
)

// BoardListPayload triggers a board listing refresh. CycleID correlates the
// log lines of one cycle across re-enqueues.
type BoardListPayload struct {
	CycleID string `json:"cycle_id"`
}

// Validate checks the payload shape.
func (p BoardListPayload) Validate() error {
	return nil
}

// CatalogCrawlPayload carries one board's crawl loop state: the watermarks
// recorded on the previous cycle travel inside the job arguments to the next.
type CatalogCrawlPayload struct {
	Board         string          `json:"board"`
	Watermarks    map[int64]int64 `json:"watermarks,omitempty"`
	ScoreToxicity bool            `json:"score_toxicity"`
	CycleID       string          `json:"cycle_id"`
}

// Validate checks the payload shape.
func (p CatalogCrawlPayload) Validate() error {
	if p.Board == "" {
		return fmt.Errorf("%w: board is required", ErrInvalidPayload)
	}

	return nil
}

// ThreadCrawlPayload identifies one thread to collect.
type ThreadCrawlPayload struct {
	Board         string `json:"board"`
	ThreadID      int64  `json:"thread_id"`
	ScoreToxicity bool   `json:"score_toxicity"`
	CycleID       string `json:"cycle_id"`
}

// Validate checks the payload shape.
func (p ThreadCrawlPayload) Validate() error {
	if p.Board == "" {
		return fmt.Errorf("%w: board is required", ErrInvalidPayload)
	}

	if p.ThreadID <= 0 {
		return fmt.Errorf("%w: thread_id must be positive", ErrInvalidPayload)
	}

	return nil
}

// SubredditPostsPayload drives one subreddit's submission crawl loop.
type SubredditPostsPayload struct {
	Subreddit     string `json:"subreddit"`
	ScoreToxicity bool   `json:"score_toxicity"`
	CycleID       string `json:"cycle_id"`
}

// Validate checks the payload shape.
func (p SubredditPostsPayload) Validate() error {
	if p.Subreddit == "" {
		return fmt.Errorf("%w: subreddit is required", ErrInvalidPayload)
	}

	return nil
}

// SubredditCommentsPayload drives one subreddit's comment crawl loop.
type SubredditCommentsPayload struct {
	Subreddit     string `json:"subreddit"`
	ScoreToxicity bool   `json:"score_toxicity"`
	CycleID       string `json:"cycle_id"`
}

// Validate checks the payload shape.
func (p SubredditCommentsPayload) Validate() error {
	if p.Subreddit == "" {
		return fmt.Errorf("%w: subreddit is required", ErrInvalidPayload)
	}

	return nil
}

// ToxicityItem is one text fragment inside a scoring job.
type ToxicityItem struct {
	ItemID string `json:"item_id"`
	Text   string `json:"text"`
}

// ToxicityPayload carries a batch of fragments for one collection.
type ToxicityPayload struct {
	CollectionID string         `json:"collection_id"`
	Language     string         `json:"language,omitempty"`
	Items        []ToxicityItem `json:"items"`
}

// Validate checks the payload shape.
func (p ToxicityPayload) Validate() error {
	if p.CollectionID == "" {
		return fmt.Errorf("%w: collection_id is required", ErrInvalidPayload)
	}

	if len(p.Items) == 0 {
		return fmt.Errorf("%w: items must be non-empty", ErrInvalidPayload)
	}

	for _, item := range p.Items {
		if item.ItemID == "" {
			return fmt.Errorf("%w: item_id is required", ErrInvalidPayload)
		}
	}

	return nil
}

// Queue names: one queue per collection so per-board politeness and
// concurrency stay independent.

// QueueBoardList is the queue for board listing refreshes.
const QueueBoardList = "board-list"

// QueueCatalog returns the catalog crawl queue for a board.
func QueueCatalog(board string) string {
	return "catalog-" + board
}

// QueueThreads returns the thread crawl queue for a board.
func QueueThreads(board string) string {
	return "threads-" + board
}

// QueueSubredditPosts returns the submission crawl queue for a subreddit.
func QueueSubredditPosts(subreddit string) string {
	return "posts-" + subreddit
}

// QueueSubredditComments returns the comment crawl queue for a subreddit.
func QueueSubredditComments(subreddit string) string {
	return "comments-" + subreddit
}

// QueueToxicity returns the scoring queue for a collection.
func QueueToxicity(collection string) string {
	return "toxicity-" + collection
}
