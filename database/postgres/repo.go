// Package postgres implements the gateway repositories using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubledger/objectgate"
)

type localUploadRepo struct {
	pool  *pgxpool.Pool
	table string
}

func (r *localUploadRepo) Get(ctx context.Context, id string) (objectgate.LocalUpload, error) {
	query := fmt.Sprintf(`
		SELECT id::text, content_type, etag, file_size_bytes, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.table)

	var u objectgate.LocalUpload
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.ContentType, &u.ETag, &u.SizeBytes, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return objectgate.LocalUpload{}, objectgate.ErrObjectNotFound
		}
		return objectgate.LocalUpload{}, fmt.Errorf("get: %w", err)
	}

	return u, nil
}

func (r *localUploadRepo) Upsert(ctx context.Context, upload objectgate.LocalUpload) (objectgate.LocalUpload, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content_type, etag, file_size_bytes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			etag = EXCLUDED.etag,
			file_size_bytes = EXCLUDED.file_size_bytes,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, r.table)

	err := r.pool.QueryRow(ctx, query,
		upload.ID, upload.ContentType, upload.ETag, upload.SizeBytes,
	).Scan(&upload.CreatedAt, &upload.UpdatedAt)
	if err != nil {
		return objectgate.LocalUpload{}, fmt.Errorf("upsert: %w", err)
	}

	return upload, nil
}

func (r *localUploadRepo) List(ctx context.Context) ([]objectgate.LocalUpload, error) {
	query := fmt.Sprintf(`
		SELECT id::text, content_type, etag, file_size_bytes, created_at, updated_at
		FROM %s
		ORDER BY created_at, id
	`, r.table)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	uploads := []objectgate.LocalUpload{}
	for rows.Next() {
		var u objectgate.LocalUpload
		if err := rows.Scan(&u.ID, &u.ContentType, &u.ETag, &u.SizeBytes, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list: scan: %w", err)
		}
		uploads = append(uploads, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: rows: %w", err)
	}

	return uploads, nil
}

type metadataRepo struct {
	pool  *pgxpool.Pool
	table string
}

func (r *metadataRepo) GetMetadata(ctx context.Context, bucket, key string) (map[string]string, error) {
	query := fmt.Sprintf(`
		SELECT meta_key, meta_value FROM %s WHERE bucket = $1 AND object_key = $2
	`, r.table)

	rows, err := r.pool.Query(ctx, query, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("get metadata: scan: %w", err)
		}
		metadata[k] = v
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get metadata: rows: %w", err)
	}

	return metadata, nil
}

func (r *metadataRepo) MergeMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (bucket, object_key, meta_key, meta_value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bucket, object_key, meta_key) DO UPDATE SET
			meta_value = EXCLUDED.meta_value,
			updated_at = NOW()
	`, r.table)

	batch := &pgx.Batch{}
	for k, v := range metadata {
		batch.Queue(query, bucket, key, k, v)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("merge metadata: %w", err)
	}
	return nil
}

type profileRepo struct {
	pool  *pgxpool.Pool
	table string
}

func (r *profileRepo) SetProfileImage(ctx context.Context, userID, objectPath string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, object_path)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			object_path = EXCLUDED.object_path,
			updated_at = NOW()
	`, r.table)

	if _, err := r.pool.Exec(ctx, query, userID, objectPath); err != nil {
		return fmt.Errorf("set profile image: %w", err)
	}
	return nil
}

func (r *profileRepo) ProfileImage(ctx context.Context, userID string) (string, error) {
	query := fmt.Sprintf(`SELECT object_path FROM %s WHERE user_id = $1`, r.table)

	var objectPath string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&objectPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", objectgate.ErrObjectNotFound
		}
		return "", fmt.Errorf("profile image: %w", err)
	}

	return objectPath, nil
}
