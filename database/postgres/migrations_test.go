package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/objectgate/database/postgres"
)

func tableExists(t *testing.T, name string) bool {
	t.Helper()
	pool := getSharedTestDatabase(t)

	var exists bool
	err := pool.QueryRow(context.Background(), `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestMigrate(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()
	tables := randomTables(t)
	t.Cleanup(func() { _ = postgres.DropTables(ctx, pool, tables) })

	assert.Error(t, postgres.ValidateSchema(ctx, pool, tables), "validate should fail before migration")

	require.NoError(t, postgres.Migrate(ctx, pool, tables))
	require.NoError(t, postgres.Migrate(ctx, pool, tables), "migrate should be idempotent")

	for _, name := range []string{tables.LocalUploads, tables.ObjectMetadata, tables.ProfileImages} {
		assert.True(t, tableExists(t, name), "table %s should exist", name)
	}
	assert.NoError(t, postgres.ValidateSchema(ctx, pool, tables))
}

func TestDropTables(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()
	tables := randomTables(t)

	require.NoError(t, postgres.Migrate(ctx, pool, tables))
	require.NoError(t, postgres.DropTables(ctx, pool, tables))

	for _, name := range []string{tables.LocalUploads, tables.ObjectMetadata, tables.ProfileImages} {
		assert.False(t, tableExists(t, name), "table %s should be dropped", name)
	}

	assert.NoError(t, postgres.DropTables(ctx, pool, tables), "dropping twice should not fail")
}

func TestValidateSchema_WrongColumnType(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()
	tables := randomTables(t)
	t.Cleanup(func() { _ = postgres.DropTables(ctx, pool, tables) })

	require.NoError(t, postgres.Migrate(ctx, pool, tables))

	_, err := pool.Exec(ctx, `ALTER TABLE "`+tables.ProfileImages+`" ALTER COLUMN object_path DROP NOT NULL`)
	require.NoError(t, err)

	err = postgres.ValidateSchema(ctx, pool, tables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object_path")
}
