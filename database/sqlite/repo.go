// Package sqlite implements the gateway repositories using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clubledger/objectgate"
)

type localUploadRepo struct {
	db        *sql.DB
	tableName string
}

func (r *localUploadRepo) Get(ctx context.Context, id string) (objectgate.LocalUpload, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, content_type, etag, file_size_bytes, created_at, updated_at
		FROM %s
		WHERE id = ?`, quoteIdentifier(r.tableName))

	var u objectgate.LocalUpload
	var createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.ContentType, &u.ETag, &u.SizeBytes, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return objectgate.LocalUpload{}, objectgate.ErrObjectNotFound
		}
		return objectgate.LocalUpload{}, fmt.Errorf("get: %w", err)
	}

	if err := parseTimestamps(&u, createdAt, updatedAt); err != nil {
		return objectgate.LocalUpload{}, fmt.Errorf("get: %w", err)
	}

	return u, nil
}

func (r *localUploadRepo) Upsert(ctx context.Context, upload objectgate.LocalUpload) (objectgate.LocalUpload, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, content_type, etag, file_size_bytes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			content_type = excluded.content_type,
			etag = excluded.etag,
			file_size_bytes = excluded.file_size_bytes,
			updated_at = excluded.updated_at
		RETURNING created_at, updated_at`, quoteIdentifier(r.tableName))

	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query,
		upload.ID, upload.ContentType, upload.ETag, upload.SizeBytes, now, now,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return objectgate.LocalUpload{}, fmt.Errorf("upsert: %w", err)
	}

	if err := parseTimestamps(&upload, createdAt, updatedAt); err != nil {
		return objectgate.LocalUpload{}, fmt.Errorf("upsert: %w", err)
	}

	return upload, nil
}

func (r *localUploadRepo) List(ctx context.Context) ([]objectgate.LocalUpload, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, content_type, etag, file_size_bytes, created_at, updated_at
		FROM %s
		ORDER BY created_at, id`, quoteIdentifier(r.tableName))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	uploads := []objectgate.LocalUpload{}
	for rows.Next() {
		var u objectgate.LocalUpload
		var createdAt, updatedAt string

		if err := rows.Scan(&u.ID, &u.ContentType, &u.ETag, &u.SizeBytes, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("list: scan: %w", err)
		}
		if err := parseTimestamps(&u, createdAt, updatedAt); err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}

		uploads = append(uploads, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: rows: %w", err)
	}

	return uploads, nil
}

func parseTimestamps(u *objectgate.LocalUpload, createdAt, updatedAt string) error {
	var err error
	u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}

	u.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return fmt.Errorf("parse updated_at: %w", err)
	}

	return nil
}

type metadataRepo struct {
	db        *sql.DB
	tableName string
}

func (r *metadataRepo) GetMetadata(ctx context.Context, bucket, key string) (map[string]string, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT meta_key, meta_value FROM %s WHERE bucket = ? AND object_key = ?`,
		quoteIdentifier(r.tableName))

	rows, err := r.db.QueryContext(ctx, query, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("merge metadata: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (bucket, object_key, meta_key, meta_value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (bucket, object_key, meta_key) DO UPDATE SET
			meta_value = excluded.meta_value,
			updated_at = excluded.updated_at`, quoteIdentifier(r.tableName))

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for k, v := range metadata {
		if _, err := tx.ExecContext(ctx, query, bucket, key, k, v, now); err != nil {
			return fmt.Errorf("merge metadata %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("merge metadata: commit: %w", err)
	}
	return nil
}

type profileRepo struct {
	db        *sql.DB
	tableName string
}

func (r *profileRepo) SetProfileImage(ctx context.Context, userID, objectPath string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (user_id, object_path, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			object_path = excluded.object_path,
			updated_at = excluded.updated_at`, quoteIdentifier(r.tableName))

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.db.ExecContext(ctx, query, userID, objectPath, now); err != nil {
		return fmt.Errorf("set profile image: %w", err)
	}
	return nil
}

func (r *profileRepo) ProfileImage(ctx context.Context, userID string) (string, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT object_path FROM %s WHERE user_id = ?`, quoteIdentifier(r.tableName))

	var objectPath string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&objectPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", objectgate.ErrObjectNotFound
		}
		return "", fmt.Errorf("profile image: %w", err)
	}

	return objectPath, nil
}
