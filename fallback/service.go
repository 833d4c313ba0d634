// Package fallback stores and serves objects uploaded while no credential
// broker was reachable. Bytes go to a FileStorage, one row per upload goes
// to an objectgate.LocalUploadRepo.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/filesystem"
)

const (
	defaultCleanupTimeout = 30 * time.Second
	defaultContentType    = "application/octet-stream"
)

// FileStorage holds the bytes of local uploads keyed by upload id.
type FileStorage interface {
	// Get returns objectgate.ErrObjectNotFound when id has no file.
	Get(ctx context.Context, id string) (io.ReadSeekCloser, error)
	// Write replaces the file for id atomically.
	Write(ctx context.Context, id string, content io.Reader) (filesystem.SaveResult, error)
	Delete(ctx context.Context, id string) error
	// List describes every stored file. Used by Populate.
	List(ctx context.Context) ([]filesystem.Entry, error)
}

// Config holds configuration options for Service.
type Config struct {
	// CacheMaxAge is sent in Cache-Control when serving (default: 1h)
	CacheMaxAge time.Duration
	// CleanupTimeout bounds removal of a file whose row could not be written (default: 30s)
	CleanupTimeout time.Duration
}

// Service implements objectgate.LocalServer.
type Service struct {
	repo           objectgate.LocalUploadRepo
	storage        FileStorage
	cacheMaxAge    time.Duration
	cleanupTimeout time.Duration
}

func NewService(repo objectgate.LocalUploadRepo, storage FileStorage, cfg Config) *Service {
	cacheMaxAge := cfg.CacheMaxAge
	if cacheMaxAge <= 0 {
		cacheMaxAge = objectgate.DefaultCacheMaxAge
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = defaultCleanupTimeout
	}
	return &Service{
		repo:           repo,
		storage:        storage,
		cacheMaxAge:    cacheMaxAge,
		cleanupTimeout: cleanupTimeout,
	}
}

// ValidID reports whether id is a canonical lowercase UUID.
func ValidID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

// Create stores content under id and records its row. Ids are write-once:
// an id that already has a row fails with ErrObjectExists. The file is
// removed again when the row cannot be written, so no orphan is left behind.
func (s *Service) Create(ctx context.Context, id, contentType string, content io.Reader) (objectgate.LocalUpload, error) {
	if err := ctx.Err(); err != nil {
		return objectgate.LocalUpload{}, fmt.Errorf("create local upload: %w", err)
	}

	if !ValidID(id) {
		return objectgate.LocalUpload{}, fmt.Errorf("create local upload %q: %w: id must be a uuid", id, objectgate.ErrInvalidInput)
	}

	switch _, err := s.repo.Get(ctx, id); {
	case err == nil:
		return objectgate.LocalUpload{}, fmt.Errorf("create local upload %s: %w", id, objectgate.ErrObjectExists)
	case !errors.Is(err, objectgate.ErrObjectNotFound):
		return objectgate.LocalUpload{}, fmt.Errorf("create local upload %s: %w", id, err)
	}

	if contentType == "" {
		contentType = defaultContentType
	}

	saved, err := s.storage.Write(ctx, id, content)
	if err != nil {
		return objectgate.LocalUpload{}, fmt.Errorf("create local upload %s: write failed: %w", id, err)
	}

	upload, upsertErr := s.repo.Upsert(ctx, objectgate.LocalUpload{
		ID:          id,
		ContentType: contentType,
		ETag:        saved.ETag,
		SizeBytes:   saved.BytesWritten,
	})
	if upsertErr != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, id); delErr != nil {
			return objectgate.LocalUpload{}, fmt.Errorf("create local upload %s: upsert failed (%w) and cleanup failed: %w", id, upsertErr, delErr)
		}
		return objectgate.LocalUpload{}, fmt.Errorf("create local upload %s: upsert failed: %w", id, upsertErr)
	}

	return upload, nil
}

// Get returns the row and an open reader for id. The caller closes the reader.
func (s *Service) Get(ctx context.Context, id string) (objectgate.LocalUpload, io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return objectgate.LocalUpload{}, nil, fmt.Errorf("get local upload: %w", err)
	}

	if !ValidID(id) {
		return objectgate.LocalUpload{}, nil, fmt.Errorf("get local upload %q: %w", id, objectgate.ErrObjectNotFound)
	}

	upload, err := s.repo.Get(ctx, id)
	if err != nil {
		return objectgate.LocalUpload{}, nil, fmt.Errorf("get local upload %s: %w", id, err)
	}

	f, err := s.storage.Get(ctx, id)
	if err != nil {
		return objectgate.LocalUpload{}, nil, fmt.Errorf("get local upload %s: %w", id, err)
	}

	return upload, f, nil
}

// Populate rebuilds rows from the files on disk and returns how many it
// wrote. Files whose names are not upload ids are skipped. Content types
// are sniffed, so a reindex can lose the type the client sent.
//
// Not atomic: on error, rows written so far stay written.
func (s *Service) Populate(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	entries, err := s.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	count := 0
	for _, e := range entries {
		if !ValidID(e.ID) {
			slog.WarnContext(ctx, "skipping unrecognized file in local upload directory", "name", e.ID)
			continue
		}

		_, err := s.repo.Upsert(ctx, objectgate.LocalUpload{
			ID:          e.ID,
			ContentType: e.ContentType,
			ETag:        e.ETag,
			SizeBytes:   e.Size,
		})
		if err != nil {
			return count, fmt.Errorf("populate %s: %w", e.ID, err)
		}
		count++
	}

	return count, nil
}

// ServeLocal implements objectgate.LocalServer. Local uploads carry no
// policy and are served to anyone holding the id. Conditional and range
// requests are handled by http.ServeContent.
func (s *Service) ServeLocal(w http.ResponseWriter, r *http.Request, id string) error {
	upload, f, err := s.Get(r.Context(), id)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.WarnContext(r.Context(), "failed to close local upload", "id", id, "err", closeErr)
		}
	}()

	h := w.Header()
	h.Set("Content-Type", upload.ContentType)
	h.Set("ETag", `"`+upload.ETag+`"`)
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(s.cacheMaxAge/time.Second)))

	http.ServeContent(w, r, "", upload.UpdatedAt, f)
	return nil
}

var _ objectgate.LocalServer = (*Service)(nil)
