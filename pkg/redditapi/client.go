// Package redditapi is the read-only client for the link-aggregator listing
// API, paginated with `after` cursors.
package redditapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/toxicrawl/toxicrawl/pkg/httpx"
)

// DefaultBaseURL is the public listing API host.
const DefaultBaseURL = "https://www.reddit.com"

const (
	defaultTimeout = 10 * time.Second
	defaultLimit   = 100
	userAgent      = "toxicrawl/1.0"
)

// Config holds listing client configuration.
type Config struct {
	BaseURL string        `yaml:"baseUrl" default:"https://www.reddit.com"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
	Limit   int           `yaml:"limit" default:"100"`
}

// Page carries one page of results plus the cursor for the next one. An empty
// After means the listing is exhausted.
type Page[T any] struct {
	Items []T
	After string
}

// Client fetches subreddit post and comment listings. Safe for concurrent use.
type Client struct {
	baseURL    string
	limit      int
	httpClient *http.Client
	policy     httpx.RetryPolicy
	log        logrus.FieldLogger
}

// NewClient creates a listing API client with the shared retry policy.
func NewClient(log logrus.FieldLogger, cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	return &Client{
		baseURL:    baseURL,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
		policy:     httpx.DefaultRetryPolicy(),
		log:        log.WithField("component", "redditapi"),
	}
}

// WithRetryPolicy overrides the default retry policy.
func (c *Client) WithRetryPolicy(p httpx.RetryPolicy) *Client {
	c.policy = p

	return c
}

// NewPosts fetches one page of recent submissions for a subreddit, starting
// from the given cursor (empty for the first page).
func (c *Client) NewPosts(ctx context.Context, subreddit, after string) (Page[PostData], error) {
	return fetchListing[PostData](ctx, c, fmt.Sprintf("/r/%s/new.json", subreddit), after)
}

// Comments fetches one page of the recent comment stream for a subreddit.
func (c *Client) Comments(ctx context.Context, subreddit, after string) (Page[CommentData], error) {
	return fetchListing[CommentData](ctx, c, fmt.Sprintf("/r/%s/comments.json", subreddit), after)
}

func fetchListing[T any](ctx context.Context, c *Client, path, after string) (Page[T], error) {
	query := url.Values{"limit": []string{strconv.Itoa(c.limit)}}
	if after != "" {
		query.Set("after", after)
	}

	var env listing
	if err := c.getJSON(ctx, path+"?"+query.Encode(), &env); err != nil {
		return Page[T]{}, err
	}

	page := Page[T]{
		Items: make([]T, 0, len(env.Data.Children)),
		After: env.Data.After,
	}

	for _, child := range env.Data.Children {
		var item T
		if err := json.Unmarshal(child.Data, &item); err != nil {
			// Data error: skip the single offending record, keep the page.
			c.log.WithError(err).WithField("kind", child.Kind).Warn("Skipping malformed listing child")

			continue
		}

		page.Items = append(page.Items, item)
	}

	return page, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	fullURL := c.baseURL + path

	return c.policy.Do(ctx, func(ctx context.Context) error {
		c.log.WithField("url", fullURL).Debug("Fetching")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &httpx.TransientError{Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w", fullURL, httpx.ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", fullURL, httpx.ErrRateLimited)
		case resp.StatusCode >= http.StatusInternalServerError:
			return &httpx.TransientError{Status: resp.StatusCode, Err: fmt.Errorf("GET %s", fullURL)}
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("GET %s: unexpected status %d", fullURL, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &httpx.TransientError{Err: fmt.Errorf("read body: %w", err)}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", fullURL, err)
		}

		return nil
	})
}
