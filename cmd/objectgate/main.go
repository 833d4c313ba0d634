package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubledger/objectgate/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "objectgate",
	Short:   "ACL-checked gateway in front of object storage",
	Long: `objectgate issues upload targets, attaches access control policies to
uploaded objects and streams them back to authorized callers. When the
object store is unreachable uploads fall back to a local directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetStringSlice("config")
		cfg, err := config.Load(files, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("env", "", "environment: dev or production (env: OBJECTGATE_ENV)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: OBJECTGATE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: OBJECTGATE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: objectgate.db, env: OBJECTGATE_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("local-dir", "", "local fallback upload directory (env: OBJECTGATE_STORAGE_LOCAL_DIR)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
