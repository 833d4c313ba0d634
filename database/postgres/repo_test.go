package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/objectgate"
)

func TestLocalUploadRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		repo := setupTestDB(t).LocalUploads()

		_, err := repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, objectgate.ErrObjectNotFound)
	})

	t.Run("upsert then get", func(t *testing.T) {
		repo := setupTestDB(t).LocalUploads()
		id := uuid.NewString()

		created, err := repo.Upsert(ctx, objectgate.LocalUpload{
			ID: id, ContentType: "image/png", ETag: "e1", SizeBytes: 10,
		})
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "image/png", got.ContentType)
		assert.Equal(t, int64(10), got.SizeBytes)
	})

	t.Run("upsert keeps created_at", func(t *testing.T) {
		repo := setupTestDB(t).LocalUploads()
		id := uuid.NewString()

		first, err := repo.Upsert(ctx, objectgate.LocalUpload{ID: id, ContentType: "text/plain", ETag: "a", SizeBytes: 1})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		second, err := repo.Upsert(ctx, objectgate.LocalUpload{ID: id, ContentType: "text/csv", ETag: "b", SizeBytes: 2})
		require.NoError(t, err)

		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	})

	t.Run("non uuid id rejected", func(t *testing.T) {
		repo := setupTestDB(t).LocalUploads()

		_, err := repo.Upsert(ctx, objectgate.LocalUpload{ID: "not-a-uuid", ContentType: "text/plain", ETag: "a"})
		assert.Error(t, err)
	})

	t.Run("list", func(t *testing.T) {
		repo := setupTestDB(t).LocalUploads()

		uploads, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, uploads)

		for range 3 {
			_, err := repo.Upsert(ctx, objectgate.LocalUpload{ID: uuid.NewString(), ContentType: "text/plain", ETag: "x"})
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

	got, err := repo.GetMetadata(ctx, "club-objects", "private/a.png")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.MergeMetadata(ctx, "club-objects", "private/a.png", map[string]string{
		"aclpolicy": "v1",
		"origin":    "upload",
	}))
	require.NoError(t, repo.MergeMetadata(ctx, "club-objects", "private/a.png", map[string]string{
		"aclpolicy": "v2",
	}))

	got, err = repo.GetMetadata(ctx, "club-objects", "private/a.png")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"aclpolicy": "v2", "origin": "upload"}, got)

	other, err := repo.GetMetadata(ctx, "club-objects", "private/b.png")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestProfileRepo(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t).ProfileImages()

	_, err := repo.ProfileImage(ctx, "user-1")
	assert.ErrorIs(t, err, objectgate.ErrObjectNotFound)

	require.NoError(t, repo.SetProfileImage(ctx, "user-1", "/objects/uploads/a"))
	require.NoError(t, repo.SetProfileImage(ctx, "user-1", "/objects/uploads/b"))

	got, err := repo.ProfileImage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "/objects/uploads/b", got)
}
