package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clubledger/objectgate"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Config holds the gateway address and the caller's bearer token.
type Config struct {
	Endpoint string
	Token    string
}

// Client performs operations against an objectgate server.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	c := &Client{
		endpoint:   endpoint,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueUpload asks the gateway where to upload a new object.
func (c *Client) IssueUpload(ctx context.Context) (objectgate.UploadTarget, error) {
	var target objectgate.UploadTarget
	if err := c.doJSON(ctx, http.MethodPost, "/api/objects/upload", nil, &target); err != nil {
		return objectgate.UploadTarget{}, fmt.Errorf("issue upload: %w", err)
	}
	return target, nil
}

// Put sends content to target. Remote targets are signed URLs and get no
// bearer token; local targets are gateway paths and do. It returns the
// object path for local uploads and "" for remote ones, which only become
// addressable once finalized.
func (c *Client) Put(ctx context.Context, target objectgate.UploadTarget, contentType string, content io.Reader, size int64) (string, error) {
	local := target.Mode == objectgate.ModeLocalFallback

	req, err := http.NewRequestWithContext(ctx, target.Method, c.resolve(target.URL), content)
	if err != nil {
		return "", fmt.Errorf("put: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if local {
		c.authorize(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("put: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("put: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("put: %w", parseServerError(resp.StatusCode, body))
	}

	if !local {
		return "", nil
	}

	var out struct {
		ObjectPath string `json:"objectPath"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("put: parse response: %w", err)
	}
	return out.ObjectPath, nil
}

// UploadFile issues a target and uploads the file at localPath to it. The
// content type is detected from the extension when empty.
func (c *Client) UploadFile(ctx context.Context, localPath, contentType string) (UploadResult, error) {
	if localPath == "" {
		return UploadResult{}, fmt.Errorf("upload: %w", ErrEmptyPath)
	}

	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}

	if contentType == "" {
		contentType = detectContentType(localPath)
	}

	target, err := c.IssueUpload(ctx)
	if err != nil {
		return UploadResult{}, err
	}

	objectPath, err := c.Put(ctx, target, contentType, file, info.Size())
	if err != nil {
		return UploadResult{}, err
	}

	return UploadResult{
		LocalPath:   localPath,
		ObjectID:    target.ID,
		Mode:        target.Mode,
		ContentType: contentType,
		Size:        info.Size(),
		UploadURL:   target.URL,
		ObjectPath:  objectPath,
	}, nil
}

// SetProfileImage finalizes an upload as the caller's public profile image
// and returns its canonical object path.
func (c *Client) SetProfileImage(ctx context.Context, uploadURL string) (string, error) {
	var out struct {
		ObjectPath string `json:"objectPath"`
	}
	in := map[string]string{"profileImageUrl": uploadURL}
	if err := c.doJSON(ctx, http.MethodPut, "/api/profile-images", in, &out); err != nil {
		return "", fmt.Errorf("set profile image: %w", err)
	}
	return out.ObjectPath, nil
}

// DownloadURL asks for a short-lived direct URL to objectPath.
func (c *Client) DownloadURL(ctx context.Context, objectPath string) (string, error) {
	var out struct {
		DownloadURL string `json:"downloadURL"`
	}
	in := map[string]string{"objectPath": objectPath}
	if err := c.doJSON(ctx, http.MethodPost, "/api/objects/download-url", in, &out); err != nil {
		return "", fmt.Errorf("download url: %w", err)
	}
	return out.DownloadURL, nil
}

// Policy reads the ACL policy attached to objectPath.
func (c *Client) Policy(ctx context.Context, objectPath string) (objectgate.AclPolicy, error) {
	var policy objectgate.AclPolicy
	path := "/api/objects/acl?path=" + url.QueryEscape(objectPath)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &policy); err != nil {
		return objectgate.AclPolicy{}, fmt.Errorf("policy: %w", err)
	}
	return policy, nil
}

// SetPolicy replaces the visibility and rules on objectPath. Only the owner
// may do this.
func (c *Client) SetPolicy(ctx context.Context, objectPath string, visibility objectgate.Visibility, rules []objectgate.AclRule) error {
	in := struct {
		ObjectPath string                `json:"objectPath"`
		Visibility objectgate.Visibility `json:"visibility"`
		Rules      []objectgate.AclRule  `json:"rules"`
	}{objectPath, visibility, rules}
	if err := c.doJSON(ctx, http.MethodPut, "/api/objects/acl", in, nil); err != nil {
		return fmt.Errorf("set policy: %w", err)
	}
	return nil
}

// Download streams objectPath through the gateway. The caller closes the
// returned reader.
func (c *Client) Download(ctx context.Context, objectPath string) (*DownloadResult, io.ReadCloser, error) {
	if objectPath == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(objectPath), http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("download: create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("download: do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("download: %w", parseServerError(resp.StatusCode, body))
	}

	return &DownloadResult{
		ObjectPath:   objectPath,
		ETag:         strings.Trim(resp.Header.Get("ETag"), `"`),
		ContentType:  resp.Header.Get("Content-Type"),
		CacheControl: resp.Header.Get("Cache-Control"),
		Size:         resp.ContentLength,
	}, resp.Body, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseServerError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// resolve turns gateway-relative paths into absolute URLs and leaves
// signed URLs alone.
func (c *Client) resolve(target string) string {
	if strings.HasPrefix(target, "/") {
		return c.endpoint + target
	}
	return target
}

func detectContentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
