// Package s3store implements objectgate.ObjectStore on Amazon S3 or any
// S3-compatible service.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/clubledger/objectgate"
)

// API is the subset of the S3 client the store calls.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// Store reads objects and rewrites their custom metadata in place.
type Store struct {
	client API
}

// New creates a store over the given client.
func New(client API) *Store {
	return &Store{client: client}
}

func (s *Store) Stat(ctx context.Context, bucket, key string) (objectgate.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return objectgate.ObjectInfo{}, fmt.Errorf("s3 stat %s/%s: %w", bucket, key, translate(err))
	}

	return objectgate.ObjectInfo{
		ContentType:  aws.ToString(out.ContentType),
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     out.Metadata,
	}, nil
}

func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 open %s/%s: %w", bucket, key, translate(err))
	}
	return out.Body, nil
}

// SetMetadata merges metadata into the object's existing user metadata.
// S3 metadata is immutable, so the object is copied onto itself with the
// REPLACE directive. The content type is carried over explicitly because
// REPLACE would otherwise drop it.
func (s *Store) SetMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 set metadata %s/%s: %w", bucket, key, translate(err))
	}

	merged := make(map[string]string, len(head.Metadata)+len(metadata))
	maps.Copy(merged, head.Metadata)
	for k, v := range metadata {
		merged[strings.ToLower(k)] = v
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(copySource(bucket, key)),
		ContentType:       head.ContentType,
		Metadata:          merged,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return fmt.Errorf("s3 set metadata %s/%s: %w", bucket, key, translate(err))
	}
	return nil
}

func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// translate maps missing-object errors onto objectgate.ErrObjectNotFound.
func translate(err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %w", objectgate.ErrObjectNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return fmt.Errorf("%w: %w", objectgate.ErrObjectNotFound, err)
		}
	}
	return err
}
