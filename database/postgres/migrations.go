package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubledger/objectgate"
)

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

type tableMigration struct {
	tableName string
	up        func(ctx context.Context, pool *pgxpool.Pool, tableName string) error
}

func getTableMigrations(tables objectgate.Tables) []tableMigration {
	return []tableMigration{
		{tableName: tables.LocalUploads, up: createLocalUploadsTable},
		{tableName: tables.ObjectMetadata, up: createObjectMetadataTable},
		{tableName: tables.ProfileImages, up: createProfileImagesTable},
	}
}

// Migrate creates every gateway table that does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables objectgate.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.up(ctx, pool, migration.tableName); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.tableName, err)
		}
	}
	return nil
}

// DropTables drops every gateway table in reverse creation order.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables objectgate.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", quote(migrations[i].tableName))
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("migrate down %s: %w", migrations[i].tableName, err)
		}
	}
	return nil
}

func createLocalUploadsTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := quote(tableName)
	indexCreatedAt := quote(fmt.Sprintf("idx_%s_created_at", tableName))

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			content_type TEXT NOT NULL,
			etag TEXT NOT NULL,
			file_size_bytes BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (created_at, id);
	`,
		quotedTable,
		indexCreatedAt, quotedTable,
	)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create local uploads table: %w", err)
	}
	return nil
}

func createObjectMetadataTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			bucket TEXT NOT NULL,
			object_key TEXT NOT NULL,
			meta_key TEXT NOT NULL,
			meta_value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (bucket, object_key, meta_key)
		);
	`, quote(tableName))

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create object metadata table: %w", err)
	}
	return nil
}

func createProfileImagesTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT PRIMARY KEY,
			object_path TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, quote(tableName))

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create profile images table: %w", err)
	}
	return nil
}
