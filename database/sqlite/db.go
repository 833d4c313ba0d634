package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/database/schema"
)

// Timestamps are stored as RFC 3339 text.
func gatewayTables(t objectgate.Tables) []schema.Table {
	return []schema.Table{
		{Name: t.LocalUploads, Columns: map[string]schema.Column{
			"id":              {Type: "text"},
			"content_type":    {Type: "text"},
			"etag":            {Type: "text"},
			"file_size_bytes": {Type: "integer"},
			"created_at":      {Type: "text"},
			"updated_at":      {Type: "text"},
		}},
		{Name: t.ObjectMetadata, Columns: map[string]schema.Column{
			"bucket":     {Type: "text"},
			"object_key": {Type: "text"},
			"meta_key":   {Type: "text"},
			"meta_value": {Type: "text"},
			"updated_at": {Type: "text"},
		}},
		{Name: t.ProfileImages, Columns: map[string]schema.Column{
			"user_id":     {Type: "text"},
			"object_path": {Type: "text"},
			"updated_at":  {Type: "text"},
		}},
	}
}

// ValidateSchema reports the first gateway table that is absent or whose
// columns differ from what Migrate creates.
func ValidateSchema(ctx context.Context, db *sql.DB, tables objectgate.Tables) error {
	for _, want := range gatewayTables(tables) {
		got, err := columnsOf(ctx, db, want.Name)
		if err != nil {
			return fmt.Errorf("validate schema: %w", err)
		}
		if err := schema.Compare(want, got); err != nil {
			return fmt.Errorf("validate schema: %w", err)
		}
	}
	return nil
}

// columnsOf reads PRAGMA table_info, which yields no rows for an unknown table.
func columnsOf(ctx context.Context, db *sql.DB, table string) (map[string]schema.Column, error) {
	if !objectgate.IsValidTableName(table) {
		return nil, fmt.Errorf("read columns: invalid table name %q", table)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]schema.Column)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("read columns of %s: %w", table, err)
		}
		cols[name] = schema.Column{Type: typ, Nullable: notNull == 0}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	return cols, nil
}
