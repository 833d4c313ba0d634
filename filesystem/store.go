// Package filesystem keeps local fallback uploads on disk. Files are named
// by upload id in one flat directory. Writes are atomic (temp file and
// rename) and every file gets a SHA256-based etag.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/clubledger/objectgate"
)

const tmpPrefix = ".t"

// SaveResult reports what Write stored.
type SaveResult struct {
	BytesWritten int64
	ETag         string
}

// Entry describes one stored file found by List.
type Entry struct {
	ID          string
	Size        int64
	ETag        string
	ContentType string
}

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Get opens a file for reading. Returns objectgate.ErrObjectNotFound if the file does not exist.
func (s *Store) Get(ctx context.Context, id string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, objectgate.ErrObjectNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically replaces the file for id with content.
func (s *Store) Write(ctx context.Context, id string, content io.Reader) (SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return SaveResult{}, ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	size, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return SaveResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return SaveResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, id); renameErr != nil {
		return SaveResult{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true
	return SaveResult{BytesWritten: size, ETag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes a file. Returns objectgate.ErrObjectNotFound if the file does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(id); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return objectgate.ErrObjectNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

// List hashes every stored file and sniffs its content type. Directories
// and leftover temp files are skipped. It is meant for one-off reindexing.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	entries := []Entry{}
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if de.IsDir() || strings.HasPrefix(de.Name(), tmpPrefix) {
			continue
		}

		entry, err := s.describe(de.Name())
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *Store) describe(name string) (Entry, error) {
	f, err := s.root.Open(name)
	if err != nil {
		return Entry{}, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "id", name, "err", closeErr)
		}
	}()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Entry{}, err
	}

	h := sha256.New()
	h.Write(head[:n])
	rest, err := io.Copy(h, f)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		ID:          name,
		Size:        int64(n) + rest,
		ETag:        hex.EncodeToString(h.Sum(nil)),
		ContentType: http.DetectContentType(head[:n]),
	}, nil
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}
