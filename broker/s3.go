package broker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/clubledger/objectgate"
)

// S3Presigner signs URLs locally with the AWS SDK. It works against AWS S3
// and any S3-compatible endpoint the client was configured with.
type S3Presigner struct {
	presign *s3.PresignClient
	now     func() time.Time
}

// NewS3Presigner wraps client in a presigner. Signed URLs are always
// path-style so the bucket stays in the path that clients hand back on
// finalize.
func NewS3Presigner(client *s3.Client, opts ...Option) *S3Presigner {
	o := newOptions(opts)
	return &S3Presigner{
		presign: s3.NewPresignClient(client, func(po *s3.PresignOptions) {
			po.ClientOptions = append(po.ClientOptions, func(so *s3.Options) {
				so.UsePathStyle = true
			})
		}),
		now:     o.now,
	}
}

// SignURL implements objectgate.CredentialBroker.
func (p *S3Presigner) SignURL(ctx context.Context, req objectgate.SignRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	expires, err := ttl(req, p.now())
	if err != nil {
		return "", fmt.Errorf("s3 presign: %w", err)
	}
	withExpiry := s3.WithPresignExpires(expires)

	bucket, key := aws.String(req.Bucket), aws.String(req.Key)

	var signed *v4.PresignedHTTPRequest
	switch req.Method {
	case http.MethodGet:
		signed, err = p.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: bucket, Key: key}, withExpiry)
	case http.MethodPut:
		signed, err = p.presign.PresignPutObject(ctx, &s3.PutObjectInput{Bucket: bucket, Key: key}, withExpiry)
	case http.MethodDelete:
		signed, err = p.presign.PresignDeleteObject(ctx, &s3.DeleteObjectInput{Bucket: bucket, Key: key}, withExpiry)
	case http.MethodHead:
		signed, err = p.presign.PresignHeadObject(ctx, &s3.HeadObjectInput{Bucket: bucket, Key: key}, withExpiry)
	}
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w: %w", req.Method, objectgate.ErrBrokerUnavailable, err)
	}

	return signed.URL, nil
}

var _ objectgate.CredentialBroker = (*S3Presigner)(nil)
