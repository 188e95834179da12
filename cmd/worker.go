package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/toxicrawl/toxicrawl/pkg/worker"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the crawl and scoring worker",
	Long: `The worker consumes crawl and scoring jobs from the Redis queue.
Each configured board and subreddit runs as a self-perpetuating crawl
loop: a cycle fetches the remote listing, persists what is new, enqueues
scoring work, and re-enqueues itself with the configured delay.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(config.Logging)
	if err != nil {
		return err
	}

	logger.SetLevel(level)
	logger.Info("Configuration loaded")

	svc, err := worker.NewService(logger, config)
	if err != nil {
		return err
	}

	if err := svc.Start(context.Background()); err != nil {
		return err
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	return svc.Stop()
}
