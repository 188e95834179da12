package cmd

import (
	"github.com/spf13/cobra"

	"github.com/toxicrawl/toxicrawl/pkg/storage"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Migrate applies the embedded schema to the configured PostgreSQL
database. All statements are idempotent, so running it repeatedly is safe.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
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

	if err := storage.Migrate(cmd.Context(), db); err != nil {
		return err
	}

	logger.Info("Schema applied")

	return nil
}
