package objectgate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StorageMode records where an object's bytes live. It is fixed when the
// upload target is issued and never changes afterwards.
type StorageMode string

const (
	ModeRemote        StorageMode = "remote"
	ModeLocalFallback StorageMode = "local"
)

func (m StorageMode) IsValid() bool {
	switch m {
	case ModeRemote, ModeLocalFallback:
		return true
	default:
		return false
	}
}

func ParseStorageMode(s string) (StorageMode, error) {
	mode := StorageMode(s)
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid storage mode: %s (valid modes: remote, local)", s)
	}
	return mode, nil
}

// StoredObject describes one binary object held in the remote store or the
// local fallback directory.
type StoredObject struct {
	ID          string      `json:"id"`
	Bucket      string      `json:"bucket,omitempty"`
	Key         string      `json:"key,omitempty"`
	ContentType string      `json:"content_type"`
	SizeBytes   int64       `json:"size_bytes"`
	ETag        string      `json:"etag,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Mode        StorageMode `json:"mode"`
	Policy      *AclPolicy  `json:"policy,omitempty"`
}

// ObjectInfo is what a remote store reports about an object.
type ObjectInfo struct {
	ContentType  string
	Size         int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

// UploadTarget is handed to a client that wants to upload bytes.
type UploadTarget struct {
	Method    string      `json:"method"`
	URL       string      `json:"uploadURL"`
	ID        string      `json:"objectId"`
	Mode      StorageMode `json:"mode"`
	ExpiresAt time.Time   `json:"expiresAt,omitzero"`
}

// SignRequest asks a credential broker for a signed URL.
type SignRequest struct {
	Bucket    string
	Key       string
	Method    string
	ExpiresAt time.Time
}

// Validate checks the method is one the brokers know how to sign.
func (r SignRequest) Validate() error {
	if r.Bucket == "" || r.Key == "" {
		return fmt.Errorf("sign request: %w: bucket and key are required", ErrInvalidInput)
	}
	switch r.Method {
	case http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead:
		return nil
	default:
		return fmt.Errorf("sign request: %w: unsupported method %s", ErrInvalidInput, r.Method)
	}
}

// ObjectStore is the remote object store the gateway reads through.
//
// Implementations must return ErrObjectNotFound (possibly wrapped) when the
// bucket/key pair does not exist.
type ObjectStore interface {
	// Stat returns the object's size, content type and custom metadata.
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)

	// Open returns a reader over the object's bytes. The caller closes it.
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// SetMetadata merges the given keys into the object's custom metadata.
	// Keys not present in metadata are left untouched.
	SetMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error
}

// CredentialBroker issues short-lived signed URLs for one verb on one object.
type CredentialBroker interface {
	SignURL(ctx context.Context, req SignRequest) (string, error)
}

// LocalServer serves objects held in local fallback mode.
type LocalServer interface {
	ServeLocal(w http.ResponseWriter, r *http.Request, id string) error
}

// Recorder observes trust downgrades and broker failures.
type Recorder interface {
	FallbackServed(operation string)
	BrokerFailed(operation string)
}

type nopRecorder struct{}

func (nopRecorder) FallbackServed(string) {}
func (nopRecorder) BrokerFailed(string)   {}
