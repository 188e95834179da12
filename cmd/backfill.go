package cmd

import (
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toxicrawl/toxicrawl/pkg/scoring"
	"github.com/toxicrawl/toxicrawl/pkg/storage"
	"github.com/toxicrawl/toxicrawl/pkg/tasks"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	backfillBoard string
	backfillLimit int
)

// backfillBatchSize is how many posts go into one scoring job.
const backfillBatchSize = 100

//nolint:gochecknoglobals // Cobra commands are typically global
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Enqueue scoring jobs for stored posts that were never scored",
	Long: `Backfill selects posts of one board that have text but no toxicity
row and enqueues scoring jobs for them. Useful after enabling scoring on
an existing dataset or after a scoring outage.

Examples:
  # Score up to 500 unscored posts of /g/
  toxicrawl backfill --board g

  # Score a larger slice
  toxicrawl backfill --board pol --limit 5000`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().StringVar(&backfillBoard, "board", "", "Board code to backfill")
	backfillCmd.Flags().IntVar(&backfillLimit, "limit", 500, "Maximum number of posts to enqueue")

	_ = backfillCmd.MarkFlagRequired("board")
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	db, err := storage.NewPostgres(&config.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("Failed to close storage")
		}
	}()

	queueManager := tasks.NewQueueManager(&asynq.RedisClientOpt{Addr: config.Redis.Address})
	defer func() {
		if closeErr := queueManager.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("Failed to close queue manager")
		}
	}()

	ctx := cmd.Context()

	posts, err := storage.NewPostRepository(db).Unscored(ctx, backfillBoard, backfillLimit)
	if err != nil {
		return err
	}

	if len(posts) == 0 {
		logger.WithField("board", backfillBoard).Info("Nothing to backfill")
		return nil
	}

	enqueued := 0

	for start := 0; start < len(posts); start += backfillBatchSize {
		end := start + backfillBatchSize
		if end > len(posts) {
			end = len(posts)
		}

		items := make([]tasks.ToxicityItem, 0, end-start)
		for _, post := range posts[start:end] {
			items = append(items, tasks.ToxicityItem{
				ItemID: scoring.ItemID(post.PostNo),
				Text:   post.BodyHTML,
			})
		}

		if err := queueManager.ScheduleToxicity(tasks.ToxicityPayload{
			CollectionID: backfillBoard,
			Items:        items,
		}, 0); err != nil {
			return err
		}

		enqueued += len(items)
	}

	logger.WithFields(logrus.Fields{
		"board": backfillBoard,
		"posts": enqueued,
	}).Info("Backfill jobs enqueued")

	return nil
}
