// Package chanapi is the read-only client for the imageboard JSON API.
package chanapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/toxicrawl/toxicrawl/pkg/httpx"
)

// DefaultBaseURL is the public imageboard API host.
const DefaultBaseURL = "https://a.4cdn.org"

const defaultTimeout = 10 * time.Second

// Config holds imageboard client configuration.
type Config struct {
	BaseURL string        `yaml:"baseUrl" default:"https://a.4cdn.org"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

// Client fetches board, catalog and thread listings. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     httpx.RetryPolicy
	log        logrus.FieldLogger
}

// NewClient creates an imageboard API client with the shared retry policy.
func NewClient(log logrus.FieldLogger, cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		policy:     httpx.DefaultRetryPolicy(),
		log:        log.WithField("component", "chanapi"),
	}
}

// WithRetryPolicy overrides the default retry policy.
func (c *Client) WithRetryPolicy(p httpx.RetryPolicy) *Client {
	c.policy = p

	return c
}

// Boards fetches the full board list from /boards.json.
func (c *Client) Boards(ctx context.Context) ([]Board, error) {
	var resp boardsResponse
	if err := c.getJSON(ctx, "/boards.json", &resp); err != nil {
		return nil, err
	}

	return resp.Boards, nil
}

// Catalog fetches /{board}/catalog.json: every page of thread summaries.
func (c *Client) Catalog(ctx context.Context, board string) ([]CatalogPage, error) {
	var pages []CatalogPage
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/catalog.json", board), &pages); err != nil {
		return nil, err
	}

	return pages, nil
}

// Thread fetches all posts of one thread. Returns httpx.ErrNotFound when the
// thread has been pruned or archived away (404).
func (c *Client) Thread(ctx context.Context, board string, threadID int64) ([]Post, error) {
	var resp threadResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/thread/%d.json", board, threadID), &resp); err != nil {
		return nil, err
	}

	return resp.Posts, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url := c.baseURL + path

	return c.policy.Do(ctx, func(ctx context.Context) error {
		c.log.WithField("url", url).Debug("Fetching")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &httpx.TransientError{Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w", url, httpx.ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", url, httpx.ErrRateLimited)
		case resp.StatusCode >= http.StatusInternalServerError:
			return &httpx.TransientError{Status: resp.StatusCode, Err: fmt.Errorf("GET %s", url)}
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &httpx.TransientError{Err: fmt.Errorf("read body: %w", err)}
		}

		// Malformed JSON is permanent: not retried, the item is skipped.
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", url, err)
		}

		return nil
	})
}
