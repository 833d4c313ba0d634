package client

import "github.com/clubledger/objectgate"

// UploadResult describes one uploaded file.
type UploadResult struct {
	LocalPath   string                 `json:"local_path"`
	ObjectID    string                 `json:"object_id"`
	Mode        objectgate.StorageMode `json:"mode"`
	ContentType string                 `json:"content_type"`
	Size        int64                  `json:"size_bytes"`
	// UploadURL is what the bytes were PUT to. Pass it to SetProfileImage
	// or any other finalize call.
	UploadURL string `json:"upload_url"`
	// ObjectPath is known straight away only for local fallback uploads.
	ObjectPath string `json:"object_path,omitempty"`
}

// DownloadResult describes a streamed object.
type DownloadResult struct {
	ObjectPath   string `json:"object_path"`
	ETag         string `json:"etag"`
	ContentType  string `json:"content_type"`
	CacheControl string `json:"cache_control"`
	Size         int64  `json:"size_bytes"`
}
