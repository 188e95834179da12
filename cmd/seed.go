package cmd

import (
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/toxicrawl/toxicrawl/pkg/tasks"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	seedUpdateBoards bool
	seedBoards       []string
	seedSubreddits   []string
	seedScore        bool
)

// seedCmd kicks off the crawl loops. Each loop keeps itself alive afterwards
// by re-enqueueing, so seeding is only needed on first start or after the
// queues have been flushed.
//
//nolint:gochecknoglobals // Cobra commands are typically global
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Enqueue the initial crawl jobs for all configured collections",
	Long: `Seed enqueues one catalog crawl per configured board and one
submission plus one comment crawl per configured subreddit. Every crawl
starts from an empty watermark state, so the first cycle treats the whole
remote listing as new.

Examples:
  # Start the crawl loops defined in config.yaml
  toxicrawl seed

  # Seed without refreshing the board listing
  toxicrawl seed --update-boards=false

  # Seed a one-off board not present in the config
  toxicrawl seed --boards g,tv --score-toxicity=false`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().BoolVar(&seedUpdateBoards, "update-boards", true, "Also refresh the board listing")
	seedCmd.Flags().StringSliceVar(&seedBoards, "boards", nil, "Boards to seed (overrides config)")
	seedCmd.Flags().StringSliceVar(&seedSubreddits, "subreddits", nil, "Subreddits to seed (overrides config)")
	seedCmd.Flags().BoolVar(&seedScore, "score-toxicity", true, "Enqueue scoring for crawled items (overrides config)")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("boards") {
		config.Boards = seedBoards
	}

	if cmd.Flags().Changed("subreddits") {
		config.Subreddits = seedSubreddits
	}

	if cmd.Flags().Changed("score-toxicity") {
		config.ScoreToxicity = seedScore
	}

	if err := config.Validate(); err != nil {
		return err
	}

	queueManager := tasks.NewQueueManager(&asynq.RedisClientOpt{Addr: config.Redis.Address})
	defer func() {
		if closeErr := queueManager.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("Failed to close queue manager")
		}
	}()

	cycleID := uuid.NewString()
	log := logger.WithField("cycle", cycleID)

	if seedUpdateBoards {
		if err := queueManager.ScheduleBoardList(tasks.BoardListPayload{CycleID: cycleID}, 0); err != nil {
			return err
		}

		log.Info("Enqueued board listing refresh")
	}

	for _, board := range config.Boards {
		if err := queueManager.ScheduleCatalogCrawl(tasks.CatalogCrawlPayload{
			Board:         board,
			ScoreToxicity: config.ScoreToxicity,
			CycleID:       cycleID,
		}, 0); err != nil {
			return err
		}

		log.WithField("board", board).Info("Enqueued catalog crawl")
	}

	for _, sub := range config.Subreddits {
		if err := queueManager.ScheduleSubredditPosts(tasks.SubredditPostsPayload{
			Subreddit:     sub,
			ScoreToxicity: config.ScoreToxicity,
			CycleID:       cycleID,
		}, 0); err != nil {
			return err
		}

		if err := queueManager.ScheduleSubredditComments(tasks.SubredditCommentsPayload{
			Subreddit:     sub,
			ScoreToxicity: config.ScoreToxicity,
			CycleID:       cycleID,
		}, 0); err != nil {
			return err
		}

		log.WithField("subreddit", sub).Info("Enqueued subreddit crawls")
	}

	return nil
}
