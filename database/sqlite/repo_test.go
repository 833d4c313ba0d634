package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/database/sqlite"
)

func TestMigrate_ValidateSchema(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.Error(t, db.Validate(ctx), "validate should fail before migration")

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migrate should be idempotent")
	assert.NoError(t, db.Validate(ctx))
}

func TestLocalUploadRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		repo := setupTestDB(t).LocalUploads()

		_, err := repo.Get(ctx, "0b6f7c7e-0a55-4c38-9a1e-3c4c4b0f8d2e")
		assert.ErrorIs(t, err, objectgate.ErrObjectNotFound)
	})

	t.Run("upsert then get", func(t *testing.T) {
		repo := setupTestDB(t).LocalUploads()

		created, err := repo.Upsert(ctx, objectgate.LocalUpload{
			ID: "id-1", ContentType: "image/png", ETag: "e1", SizeBytes: 10,
		})
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := repo.Get(ctx, "id-1")
		require.NoError(t, err)
		assert.Equal(t, "image/png", got.ContentType)
		assert.Equal(t, int64(10), got.SizeBytes)
		assert.Equal(t, "e1", got.ETag)
	})

	t.Run("upsert keeps created_at", func(t *testing.T) {
		repo := setupTestDB(t).LocalUploads()

		first, err := repo.Upsert(ctx, objectgate.LocalUpload{ID: "id-1", ContentType: "text/plain", ETag: "a", SizeBytes: 1})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		second, err := repo.Upsert(ctx, objectgate.LocalUpload{ID: "id-1", ContentType: "text/csv", ETag: "b", SizeBytes: 2})
		require.NoError(t, err)

		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.Equal(t, "text/csv", second.ContentType)
	})

	t.Run("list", func(t *testing.T) {
		repo := setupTestDB(t).LocalUploads()

		uploads, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, uploads)

		for _, id := range []string{"a", "b", "c"} {
			_, err := repo.Upsert(ctx, objectgate.LocalUpload{ID: id, ContentType: "text/plain", ETag: id})
			require.NoError(t, err)
		}

		uploads, err = repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, uploads, 3)
	})
}

func TestMetadataRepo(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ObjectMetadata()

	metadata, err := repo.GetMetadata(ctx, "bucket", "uploads/1")
	require.NoError(t, err)
	assert.Empty(t, metadata)

	require.NoError(t, repo.MergeMetadata(ctx, "bucket", "uploads/1", map[string]string{
		"aclpolicy": "v1",
		"source":    "upload",
	}))
	require.NoError(t, repo.MergeMetadata(ctx, "bucket", "uploads/1", map[string]string{
		"aclpolicy": "v2",
	}))

	metadata, err = repo.GetMetadata(ctx, "bucket", "uploads/1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"aclpolicy": "v2", "source": "upload"}, metadata)

	other, err := repo.GetMetadata(ctx, "bucket", "uploads/2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestProfileRepo(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ProfileImages()

	_, err := repo.ProfileImage(ctx, "u1")
	assert.ErrorIs(t, err, objectgate.ErrObjectNotFound)

	require.NoError(t, repo.SetProfileImage(ctx, "u1", "/objects/uploads/a"))
	require.NoError(t, repo.SetProfileImage(ctx, "u1", "/objects/uploads/b"))

	got, err := repo.ProfileImage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "/objects/uploads/b", got)
}
