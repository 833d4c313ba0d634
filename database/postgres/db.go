package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/database/schema"
)

const timestamptz = "timestamp with time zone"

func gatewayTables(t objectgate.Tables) []schema.Table {
	return []schema.Table{
		{Name: t.LocalUploads, Columns: map[string]schema.Column{
			"id":              {Type: "uuid"},
			"content_type":    {Type: "text"},
			"etag":            {Type: "text"},
			"file_size_bytes": {Type: "bigint"},
			"created_at":      {Type: timestamptz},
			"updated_at":      {Type: timestamptz},
		}},
		{Name: t.ObjectMetadata, Columns: map[string]schema.Column{
			"bucket":     {Type: "text"},
			"object_key": {Type: "text"},
			"meta_key":   {Type: "text"},
			"meta_value": {Type: "text"},
			"updated_at": {Type: timestamptz},
		}},
		{Name: t.ProfileImages, Columns: map[string]schema.Column{
			"user_id":     {Type: "text"},
			"object_path": {Type: "text"},
			"updated_at":  {Type: timestamptz},
		}},
	}
}

// ValidateSchema reports the first gateway table that is absent from the
// public schema or whose columns differ from what Migrate creates.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables objectgate.Tables) error {
	for _, want := range gatewayTables(tables) {
		got, err := columnsOf(ctx, pool, want.Name)
		if err != nil {
			return fmt.Errorf("validate schema: %w", err)
		}
		if err := schema.Compare(want, got); err != nil {
			return fmt.Errorf("validate schema: %w", err)
		}
	}
	return nil
}

func columnsOf(ctx context.Context, pool *pgxpool.Pool, table string) (map[string]schema.Column, error) {
	if !objectgate.IsValidTableName(table) {
		return nil, fmt.Errorf("read columns: invalid table name %q", table)
	}

	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`, table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}

	cols := make(map[string]schema.Column)
	var (
		name, typ string
		nullable  bool
	)
	_, err = pgx.ForEachRow(rows, []any{&name, &typ, &nullable}, func() error {
		cols[name] = schema.Column{Type: typ, Nullable: nullable}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	return cols, nil
}
