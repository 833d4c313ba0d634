package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clubledger/objectgate"

	_ "modernc.org/sqlite" // SQLite driver
)

// database provides SQLite database operations.
type database struct {
	db     *sql.DB
	tables objectgate.Tables
}

// Connect establishes a connection to SQLite.
// Tables should be validated before calling Connect.
func Connect(ctx context.Context, dsn string, tables objectgate.Tables) (*database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	return &database{
		db:     db,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

func (d *database) LocalUploads() objectgate.LocalUploadRepo {
	return &localUploadRepo{db: d.db, tableName: d.tables.LocalUploads}
}

func (d *database) ObjectMetadata() objectgate.MetadataRepo {
	return &metadataRepo{db: d.db, tableName: d.tables.ObjectMetadata}
}

func (d *database) ProfileImages() objectgate.ProfileStore {
	return &profileRepo{db: d.db, tableName: d.tables.ProfileImages}
}

// Close closes the database connection.
func (d *database) Close() error {
	return d.db.Close()
}
