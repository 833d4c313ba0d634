package broker

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/stowry-go"

	"github.com/clubledger/objectgate"
)

// StowrySigner signs URLs with Stowry native signing. Stowry has no buckets,
// so the bucket becomes the first path segment.
type StowrySigner struct {
	endpoint  string
	accessKey string
	secretKey string
	now       func() time.Time
}

// NewStowrySigner creates a signer for the Stowry server at endpoint.
func NewStowrySigner(endpoint, accessKey, secretKey string, opts ...Option) (*StowrySigner, error) {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("new stowry signer: %w: endpoint, access key and secret key are required",
			objectgate.ErrConfigurationMissing)
	}

	o := newOptions(opts)
	return &StowrySigner{
		endpoint:  endpoint,
		accessKey: accessKey,
		secretKey: secretKey,
		now:       o.now,
	}, nil
}

// SignURL implements objectgate.CredentialBroker.
func (s *StowrySigner) SignURL(_ context.Context, req objectgate.SignRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	expires, err := ttl(req, now)
	if err != nil {
		return "", fmt.Errorf("stowry sign: %w", err)
	}

	return SignStowryURL(s.endpoint, s.accessKey, s.secretKey, req.Method,
		"/"+req.Bucket+"/"+req.Key, now, expires), nil
}

// SignStowryURL builds a presigned Stowry URL for method on path.
func SignStowryURL(endpoint, accessKey, secretKey, method, path string, now time.Time, expires time.Duration) string {
	timestamp := now.Unix()
	seconds := int64(expires / time.Second)
	sig := stowry.Sign(secretKey, method, path, timestamp, seconds)

	query := url.Values{}
	query.Set(stowry.StowryCredentialParam, accessKey)
	query.Set(stowry.StowryDateParam, strconv.FormatInt(timestamp, 10))
	query.Set(stowry.StowryExpiresParam, strconv.FormatInt(seconds, 10))
	query.Set(stowry.StowrySignatureParam, sig)

	return endpoint + path + "?" + query.Encode()
}

var _ objectgate.CredentialBroker = (*StowrySigner)(nil)
