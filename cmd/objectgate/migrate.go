package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clubledger/objectgate/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the gateway tables",
	Long: `Create the local upload, object metadata and profile image tables
if they do not exist, then check their columns.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if err := db.Validate(ctx); err != nil {
		return fmt.Errorf("validate database schema: %w", err)
	}

	slog.Info("database migration complete",
		"local_uploads", cfg.Database.Tables.LocalUploads,
		"object_metadata", cfg.Database.Tables.ObjectMetadata,
		"profile_images", cfg.Database.Tables.ProfileImages,
	)
	return nil
}
