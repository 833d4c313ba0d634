package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubledger/objectgate"
)

type database struct {
	pool   *pgxpool.Pool
	tables objectgate.Tables
}

// Connect establishes a connection to PostgreSQL.
// Tables should be validated before calling Connect.
func Connect(ctx context.Context, dsn string, tables objectgate.Tables) (*database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &database{
		pool:   pool,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.pool, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.pool, d.tables)
}

func (d *database) LocalUploads() objectgate.LocalUploadRepo {
	return &localUploadRepo{pool: d.pool, table: quote(d.tables.LocalUploads)}
}

func (d *database) ObjectMetadata() objectgate.MetadataRepo {
	return &metadataRepo{pool: d.pool, table: quote(d.tables.ObjectMetadata)}
}

func (d *database) ProfileImages() objectgate.ProfileStore {
	return &profileRepo{pool: d.pool, table: quote(d.tables.ProfileImages)}
}

// Close closes the database connection pool.
func (d *database) Close() error {
	d.pool.Close()
	return nil
}
