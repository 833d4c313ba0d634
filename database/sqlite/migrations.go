package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clubledger/objectgate"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations for the gateway
func getTableMigrations(tables objectgate.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.LocalUploads,
			Up:        createLocalUploadsTable(tables.LocalUploads),
			Down:      dropTable(tables.LocalUploads),
		},
		{
			TableName: tables.ObjectMetadata,
			Up:        createObjectMetadataTable(tables.ObjectMetadata),
			Down:      dropTable(tables.ObjectMetadata),
		},
		{
			TableName: tables.ProfileImages,
			Up:        createProfileImagesTable(tables.ProfileImages),
			Down:      dropTable(tables.ProfileImages),
		},
	}
}

func Migrate(ctx context.Context, db *sql.DB, tables objectgate.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables objectgate.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createLocalUploadsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexCreatedAt := quoteIdentifier(fmt.Sprintf("idx_%s_created_at", tableName))

		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				content_type TEXT NOT NULL,
				etag TEXT NOT NULL,
				file_size_bytes INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)
		`, quotedTable)

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		indexSQL := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (created_at, id)
		`, indexCreatedAt, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index created_at: %w", err)
		}

		return nil
	}
}

func createObjectMetadataTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				bucket TEXT NOT NULL,
				object_key TEXT NOT NULL,
				meta_key TEXT NOT NULL,
				meta_value TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (bucket, object_key, meta_key)
			)
		`, quoteIdentifier(tableName))

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		return nil
	}
}

func createProfileImagesTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT NOT NULL PRIMARY KEY,
				object_path TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)
		`, quoteIdentifier(tableName))

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
