package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/toxicrawl/toxicrawl/pkg/chanapi"
	"github.com/toxicrawl/toxicrawl/pkg/perspective"
	"github.com/toxicrawl/toxicrawl/pkg/redditapi"
	"github.com/toxicrawl/toxicrawl/pkg/redis"
	"github.com/toxicrawl/toxicrawl/pkg/storage"
)

// Define static errors
var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrNoCollections is returned when neither boards nor subreddits are configured
	ErrNoCollections = errors.New("at least one board or subreddit must be configured")
	// ErrInvalidMaxPages is returned when the listing page cap is not positive
	ErrInvalidMaxPages = errors.New("maxPages must be positive")
)

// RecrawlConfig holds the cadence of each crawl loop as cron-style schedule
// expressions ("@every 60s" or standard five-field specs).
type RecrawlConfig struct {
	Catalog   string `yaml:"catalog" default:"@every 60s"`
	Subreddit string `yaml:"subreddit" default:"@every 120s"`
}

// Config contains worker-specific settings.
type Config struct {
	Logging         string `yaml:"logging" default:"info"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9090"`
	HealthCheckAddr string `yaml:"healthCheckAddr,omitempty"`
	PProfAddr       string `yaml:"pprofAddr,omitempty"`

	// Concurrency deliberately defaults low: every in-flight job hits an
	// external API and politeness matters more than throughput.
	Concurrency int `yaml:"concurrency" default:"2"`

	Boards        []string      `yaml:"boards"`
	Subreddits    []string      `yaml:"subreddits"`
	ScoreToxicity bool          `yaml:"scoreToxicity" default:"true"`
	Recrawl       RecrawlConfig `yaml:"recrawl"`
	PageDelay     time.Duration `yaml:"pageDelay" default:"1s"`
	MaxPages      int           `yaml:"maxPages" default:"4"`

	Redis       redis.Config       `yaml:"redis"`
	Storage     storage.Config     `yaml:"storage"`
	Perspective perspective.Config `yaml:"perspective"`
	Chan        chanapi.Config     `yaml:"chan"`
	Reddit      redditapi.Config   `yaml:"reddit"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if len(c.Boards) == 0 && len(c.Subreddits) == 0 {
		return ErrNoCollections
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if c.ScoreToxicity {
		if err := c.Perspective.Validate(); err != nil {
			return fmt.Errorf("perspective: %w", err)
		}
	}

	if _, err := c.CatalogDelay(); err != nil {
		return fmt.Errorf("recrawl.catalog: %w", err)
	}

	if _, err := c.SubredditDelay(); err != nil {
		return fmt.Errorf("recrawl.subreddit: %w", err)
	}

	return nil
}

// CatalogDelay returns how long a catalog loop waits before its next pass.
func (c *Config) CatalogDelay() (time.Duration, error) {
	return scheduleDelay(c.Recrawl.Catalog)
}

// SubredditDelay returns how long a subreddit loop waits before its next pass.
func (c *Config) SubredditDelay() (time.Duration, error) {
	return scheduleDelay(c.Recrawl.Subreddit)
}

// scheduleDelay converts a cron schedule expression into the delay until its
// next firing. The crawl loops re-enqueue themselves with this delay instead
// of running an in-process ticker, so the cadence survives worker restarts.
func scheduleDelay(expr string) (time.Duration, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, fmt.Errorf("parse schedule %q: %w", expr, err)
	}

	now := time.Now()

	delay := schedule.Next(now).Sub(now)
	if delay < 0 {
		delay = 0
	}

	return delay, nil
}
