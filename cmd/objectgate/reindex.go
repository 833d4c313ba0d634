package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clubledger/objectgate/config"
	"github.com/clubledger/objectgate/fallback"
	"github.com/clubledger/objectgate/filesystem"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild local upload rows from the fallback directory",
	Long: `Scan the local fallback directory and upsert a row for every upload
file found. This is useful when:
  - Recovering metadata after database loss
  - Moving the fallback directory to another host`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
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

	if err := db.Validate(ctx); err != nil {
		return fmt.Errorf("validate database schema: %w", err)
	}

	root, err := openLocalDir(cfg.Storage.LocalDir, false)
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	service := fallback.NewService(db.LocalUploads(), filesystem.NewFileStorage(root), fallback.Config{
		CleanupTimeout: cfg.Storage.CleanupTimeout,
	})

	slog.Info("scanning local upload directory", "path", cfg.Storage.LocalDir)

	n, err := service.Populate(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	slog.Info("reindex complete", "uploads", n)
	return nil
}
