// Package perspective is the client for the comment toxicity scoring API,
// with credential rotation on rate limits and bounded retry.
package perspective

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/toxicrawl/toxicrawl/pkg/httpx"
)

// DefaultEndpoint is the public analyze endpoint.
const DefaultEndpoint = "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"

// DefaultLanguage is assumed when a job carries no language tag.
const DefaultLanguage = "en"

const defaultTimeout = 20 * time.Second

// Attributes is the fixed attribute set requested for every comment.
var Attributes = []string{"TOXICITY", "SEVERE_TOXICITY", "IDENTITY_ATTACK", "INSULT", "THREAT"}

// Define static errors
var (
	// ErrNoAPIKeys is returned when the client is constructed without credentials.
	ErrNoAPIKeys = errors.New("at least one API key is required")
)

// Config holds scoring client configuration.
type Config struct {
	Endpoint string        `yaml:"endpoint" default:"https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"`
	APIKeys  []string      `yaml:"apiKeys"`
	Timeout  time.Duration `yaml:"timeout" default:"20s"`
	Language string        `yaml:"language" default:"en"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.APIKeys) == 0 {
		return ErrNoAPIKeys
	}

	return nil
}

// Scores holds one attribute score per requested attribute, in [0,1].
// A nil pointer means the language/attribute pair is unsupported: "not
// computed", never zero.
type Scores struct {
	Toxicity       *float64
	SevereToxicity *float64
	IdentityAttack *float64
	Insult         *float64
	Threat         *float64
}

type analyzeRequest struct {
	Comment             struct{ Text string `json:"text"` } `json:"comment"`
	Languages           []string                            `json:"languages"`
	RequestedAttributes map[string]struct{}                 `json:"requestedAttributes"`
	DoNotStore          bool                                `json:"doNotStore"`
}

type analyzeResponse struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// Client calls the scoring API. On 429 it rotates to the next API key
// round-robin before backing off and retrying; the cursor is shared across
// calls so sustained quota pressure spreads over all keys. Safe for
// concurrent use.
type Client struct {
	endpoint   string
	keys       []string
	keyCursor  atomic.Uint32
	httpClient *http.Client
	policy     httpx.RetryPolicy
	log        logrus.FieldLogger
}

// NewClient creates a scoring client with the shared retry policy.
func NewClient(log logrus.FieldLogger, cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint:   endpoint,
		keys:       cfg.APIKeys,
		httpClient: &http.Client{Timeout: timeout},
		policy:     httpx.DefaultRetryPolicy(),
		log:        log.WithField("component", "perspective"),
	}, nil
}

// WithRetryPolicy overrides the default retry policy.
func (c *Client) WithRetryPolicy(p httpx.RetryPolicy) *Client {
	c.policy = p

	return c
}

func (c *Client) currentKey() string {
	return c.keys[int(c.keyCursor.Load())%len(c.keys)]
}

func (c *Client) rotateKey() {
	if len(c.keys) > 1 {
		c.keyCursor.Add(1)
	}
}

// Score requests the fixed attribute set for one comment. The text must
// already be normalized. Returns httpx.ErrNotFound or an exhausted-retries
// error for items that must transition to Failed.
func (c *Client) Score(ctx context.Context, text, language string) (Scores, error) {
	if language == "" {
		language = DefaultLanguage
	}

	reqBody := analyzeRequest{
		Languages:           []string{language},
		RequestedAttributes: make(map[string]struct{}, len(Attributes)),
		DoNotStore:          true,
	}
	reqBody.Comment.Text = text

	for _, attr := range Attributes {
		reqBody.RequestedAttributes[attr] = struct{}{}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Scores{}, fmt.Errorf("marshal analyze request: %w", err)
	}

	var parsed analyzeResponse

	err = c.policy.Do(ctx, func(ctx context.Context) error {
		return c.analyzeOnce(ctx, payload, &parsed)
	})
	if err != nil {
		return Scores{}, err
	}

	return scoresFromResponse(&parsed), nil
}

func (c *Client) analyzeOnce(ctx context.Context, payload []byte, out *analyzeResponse) error {
	url := c.endpoint + "?key=" + c.currentKey()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &httpx.TransientError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Quota exhausted on this credential: switch keys before the backoff.
		c.rotateKey()
		c.log.Warn("Scoring API rate limited, rotating API key")

		return httpx.ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return httpx.ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return &httpx.TransientError{Status: resp.StatusCode, Err: errors.New("analyze call failed")}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("analyze call: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &httpx.TransientError{Err: fmt.Errorf("read body: %w", err)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode analyze response: %w", err)
	}

	return nil
}

func scoresFromResponse(resp *analyzeResponse) Scores {
	value := func(attr string) *float64 {
		entry, ok := resp.AttributeScores[attr]
		if !ok {
			return nil
		}

		v := entry.SummaryScore.Value

		return &v
	}

	return Scores{
		Toxicity:       value("TOXICITY"),
		SevereToxicity: value("SEVERE_TOXICITY"),
		IdentityAttack: value("IDENTITY_ATTACK"),
		Insult:         value("INSULT"),
		Threat:         value("THREAT"),
	}
}
