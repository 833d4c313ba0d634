package database

import (
	"context"
	"fmt"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/database/postgres"
	"github.com/clubledger/objectgate/database/sqlite"
)

// Config holds the configuration for connecting to a persistence backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" yaml:"dsn" validate:"required"`
	// Tables holds the table names
	Tables objectgate.Tables `mapstructure:"tables" yaml:"tables"`
}

// Database is a connected persistence backend.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	LocalUploads() objectgate.LocalUploadRepo
	ObjectMetadata() objectgate.MetadataRepo
	ProfileImages() objectgate.ProfileStore
	Close() error
}

// Connect validates the table names and opens the configured backend.
// It does not migrate; call Migrate and Validate as needed.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
