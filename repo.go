package objectgate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Tables holds configurable table names for gateway persistence.
// This allows several deployments to share one database.
type Tables struct {
	LocalUploads   string `mapstructure:"local_uploads" yaml:"local_uploads"`
	ObjectMetadata string `mapstructure:"object_metadata" yaml:"object_metadata"`
	ProfileImages  string `mapstructure:"profile_images" yaml:"profile_images"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	names := map[string]string{
		"local uploads":   t.LocalUploads,
		"object metadata": t.ObjectMetadata,
		"profile images":  t.ProfileImages,
	}

	var errs []error
	for label, name := range names {
		if name == "" {
			errs = append(errs, fmt.Errorf("%s table name cannot be empty", label))
			continue
		}
		if !IsValidTableName(name) {
			errs = append(errs, fmt.Errorf("invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", label, name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validate tables: %w", errors.Join(errs...))
	}
	return nil
}

// LocalUpload is the metadata row of an object held in local fallback storage.
type LocalUpload struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	ETag        string    `json:"etag"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LocalUploadRepo persists local fallback upload metadata.
type LocalUploadRepo interface {
	// Get returns ErrObjectNotFound when no row exists for id.
	Get(ctx context.Context, id string) (LocalUpload, error)
	// Upsert inserts or replaces the row, keeping the original CreatedAt.
	Upsert(ctx context.Context, upload LocalUpload) (LocalUpload, error)
	List(ctx context.Context) ([]LocalUpload, error)
}

// MetadataRepo keeps custom object metadata for remote stores that cannot
// hold it themselves.
type MetadataRepo interface {
	// GetMetadata returns an empty map when the object has no metadata.
	GetMetadata(ctx context.Context, bucket, key string) (map[string]string, error)
	// MergeMetadata upserts the given keys. Other keys are left untouched.
	MergeMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error
}

// ProfileStore records which object a member uses as their profile image.
type ProfileStore interface {
	SetProfileImage(ctx context.Context, userID, objectPath string) error
	// ProfileImage returns ErrObjectNotFound when the member has none.
	ProfileImage(ctx context.Context, userID string) (string, error)
}
