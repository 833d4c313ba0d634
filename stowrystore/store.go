// Package stowrystore implements objectgate.ObjectStore on a Stowry server.
//
// Stowry keeps bytes and content type only, so custom object metadata (the
// ACL policy) lives in a MetadataRepo keyed by bucket and key. Stowry has no
// buckets either: the bucket becomes the first path segment.
//
// Stowry routes no HEAD requests, so every call costs one signed GET:
//
//   - Stat and SetMetadata ask for the first byte only (Range: bytes=0-0)
//     and take the size from Content-Range. An empty object answers 416,
//     which counts as found. A server that ignores the range answers 200
//     and the store closes the body unread.
//   - Open is the only call that transfers the object.
//
// A gateway download is therefore one ranged GET followed by one full GET.
package stowrystore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/broker"
)

// requestTTL is the lifetime of the signed URLs the store uses for its own
// reads. They never leave the process.
const requestTTL = time.Minute

// Config holds the Stowry server settings.
type Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// Store reads objects from Stowry over signed URLs.
type Store struct {
	cfg      Config
	metadata objectgate.MetadataRepo
	client   *http.Client
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient sets the client used for object reads.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		s.client = client
	}
}

// WithClock sets the time source used when signing reads.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store. Metadata writes go to the given repo.
func New(cfg Config, metadata objectgate.MetadataRepo, opts ...Option) (*Store, error) {
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("new stowry store: %w: endpoint, access key and secret key are required",
			objectgate.ErrConfigurationMissing)
	}
	if metadata == nil {
		return nil, fmt.Errorf("new stowry store: %w: metadata repo is required", objectgate.ErrConfigurationMissing)
	}

	s := &Store{
		cfg:      cfg,
		metadata: metadata,
		client:   http.DefaultClient,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Stat reads the object's headers through a one-byte ranged GET.
func (s *Store) Stat(ctx context.Context, bucket, key string) (objectgate.ObjectInfo, error) {
	resp, err := s.get(ctx, bucket, key, true)
	if err != nil {
		return objectgate.ObjectInfo{}, fmt.Errorf("stowry stat %s/%s: %w", bucket, key, err)
	}
	_ = resp.Body.Close()

	info := objectgate.ObjectInfo{
		ContentType: resp.Header.Get("Content-Type"),
		Size:        objectSize(resp),
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t
		}
	}

	metadata, err := s.metadata.GetMetadata(ctx, bucket, key)
	if err != nil {
		return objectgate.ObjectInfo{}, fmt.Errorf("stowry stat %s/%s: %w", bucket, key, err)
	}
	info.Metadata = metadata

	return info, nil
}

func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := s.get(ctx, bucket, key, false)
	if err != nil {
		return nil, fmt.Errorf("stowry open %s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

// SetMetadata merges metadata for an object that exists on the server.
func (s *Store) SetMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error {
	resp, err := s.get(ctx, bucket, key, true)
	if err != nil {
		return fmt.Errorf("stowry set metadata %s/%s: %w", bucket, key, err)
	}
	_ = resp.Body.Close()

	if err := s.metadata.MergeMetadata(ctx, bucket, key, metadata); err != nil {
		return fmt.Errorf("stowry set metadata %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, bucket, key string, firstByte bool) (*http.Response, error) {
	signed := broker.SignStowryURL(s.cfg.Endpoint, s.cfg.AccessKey, s.cfg.SecretKey,
		http.MethodGet, "/"+bucket+"/"+key, s.now(), requestTTL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if firstByte {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, objectgate.ErrObjectNotFound
	case firstByte && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// empty object
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return resp, nil
}

// objectSize reads the total after the slash in Content-Range on a 206 or
// 416 and falls back to Content-Length otherwise.
func objectSize(resp *http.Response) int64 {
	if resp.StatusCode == http.StatusPartialContent || resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		cr := resp.Header.Get("Content-Range")
		if i := strings.LastIndexByte(cr, '/'); i >= 0 {
			if n, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
				return n
			}
		}
		return -1
	}
	return resp.ContentLength
}

var _ objectgate.ObjectStore = (*Store)(nil)
