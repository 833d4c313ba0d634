package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clubledger/objectgate"
)

// SignPath is the sidecar endpoint that issues signed URLs.
const SignPath = "/object-storage/signed-object-url"

type signRequestBody struct {
	BucketName string    `json:"bucket_name"`
	ObjectName string    `json:"object_name"`
	Method     string    `json:"method"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type signResponseBody struct {
	SignedURL string `json:"signed_url"`
}

// Sidecar obtains signed URLs from a credential sidecar over HTTP.
type Sidecar struct {
	endpoint   string
	httpClient *http.Client
}

// NewSidecar creates a Sidecar talking to endpoint, e.g. "http://127.0.0.1:1106".
func NewSidecar(endpoint string, opts ...Option) (*Sidecar, error) {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("new sidecar: %w: endpoint is required", objectgate.ErrConfigurationMissing)
	}

	o := newOptions(opts)
	return &Sidecar{
		endpoint:   endpoint,
		httpClient: o.httpClient,
	}, nil
}

// SignURL implements objectgate.CredentialBroker.
func (s *Sidecar) SignURL(ctx context.Context, req objectgate.SignRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(signRequestBody{
		BucketName: req.Bucket,
		ObjectName: req.Key,
		Method:     req.Method,
		ExpiresAt:  req.ExpiresAt.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("sidecar: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+SignPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sidecar: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sidecar: %w: %w", objectgate.ErrBrokerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("sidecar: %w: status %d: %s",
			objectgate.ErrBrokerUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out signResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("sidecar: %w: decode response: %w", objectgate.ErrBrokerUnavailable, err)
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("sidecar: %w: empty signed url", objectgate.ErrBrokerUnavailable)
	}

	return out.SignedURL, nil
}

var _ objectgate.CredentialBroker = (*Sidecar)(nil)
