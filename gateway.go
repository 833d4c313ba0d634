package objectgate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultUploadTTL is how long an issued upload URL stays valid.
	DefaultUploadTTL = 900 * time.Second
	// DefaultCacheMaxAge is the max-age sent with streamed objects.
	DefaultCacheMaxAge = 3600 * time.Second

	uploadsDir = "uploads"
)

// Config holds the storage settings the gateway consumes.
// PrivateObjectDir and PublicSearchPaths are checked only when an operation
// needs them, so local fallback flows work without them.
type Config struct {
	PrivateObjectDir  string
	PublicSearchPaths []string
	UploadTTL         time.Duration // default: 900s
	CacheMaxAge       time.Duration // default: 3600s
}

// Gateway issues upload targets, attaches ACL policies and serves
// ACL-checked downloads. It is safe for concurrent use and holds no
// per-request state.
type Gateway struct {
	store       ObjectStore
	broker      CredentialBroker
	local       LocalServer
	acl         Authorizer
	recorder    Recorder
	normalizer  PathNormalizer
	publicPaths []string
	uploadTTL   time.Duration
	cacheMaxAge time.Duration
	now         func() time.Time
	newID       func() string
	tracer      trace.Tracer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAuthorizer replaces the default PolicyEngine.
func WithAuthorizer(a Authorizer) Option {
	return func(g *Gateway) { g.acl = a }
}

// WithRecorder sets the observer for fallback and broker events.
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// WithClock sets the time source used for signed URL expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithIDGenerator sets the object id source.
func WithIDGenerator(newID func() string) Option {
	return func(g *Gateway) { g.newID = newID }
}

// NewGateway builds a Gateway. store and broker may be nil when no remote
// store is configured; uploads then always fall back to local mode. local may
// be nil when local fallback is disabled.
func NewGateway(store ObjectStore, broker CredentialBroker, local LocalServer, cfg Config, opts ...Option) (*Gateway, error) {
	uploadTTL := cfg.UploadTTL
	if uploadTTL <= 0 {
		uploadTTL = DefaultUploadTTL
	}
	cacheMaxAge := cfg.CacheMaxAge
	if cacheMaxAge <= 0 {
		cacheMaxAge = DefaultCacheMaxAge
	}

	dir := strings.TrimSuffix(cfg.PrivateObjectDir, "/")
	if dir != "" && !strings.HasPrefix(dir, "/") {
		return nil, fmt.Errorf("new gateway: %w: private object dir must start with /<bucket>", ErrInvalidInput)
	}

	g := &Gateway{
		store:       store,
		broker:      broker,
		local:       local,
		acl:         PolicyEngine{},
		recorder:    nopRecorder{},
		normalizer:  PathNormalizer{PrivateObjectDir: dir},
		publicPaths: cfg.PublicSearchPaths,
		uploadTTL:   uploadTTL,
		cacheMaxAge: cacheMaxAge,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		tracer:      otel.Tracer("github.com/clubledger/objectgate"),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Normalize exposes the gateway's path normalizer.
func (g *Gateway) Normalize(raw string) string {
	return g.normalizer.Normalize(raw)
}

// IssueUploadTarget allocates a new object id and returns where the client
// should PUT its bytes. When no signed URL can be obtained it returns a local
// fallback target instead; it never fails.
func (g *Gateway) IssueUploadTarget(ctx context.Context) UploadTarget {
	ctx, span := g.tracer.Start(ctx, "gateway.IssueUploadTarget")
	defer span.End()

	target, err := g.remoteUploadTarget(ctx)
	if err == nil {
		span.SetAttributes(attribute.String("objectgate.mode", string(ModeRemote)))
		return target
	}

	if errors.Is(err, ErrBrokerUnavailable) {
		g.recorder.BrokerFailed("issue_upload")
	}
	g.recorder.FallbackServed("issue_upload")

	id := g.newID()
	slog.WarnContext(ctx, "issuing local fallback upload target; object will not be ACL-checked",
		"object_id", id, "err", err)
	span.SetAttributes(attribute.String("objectgate.mode", string(ModeLocalFallback)))

	return UploadTarget{
		Method: http.MethodPut,
		URL:    LocalUploadTargetPrefix + id,
		ID:     id,
		Mode:   ModeLocalFallback,
	}
}

func (g *Gateway) remoteUploadTarget(ctx context.Context) (UploadTarget, error) {
	if g.broker == nil {
		return UploadTarget{}, fmt.Errorf("issue upload target: %w: no broker configured", ErrBrokerUnavailable)
	}

	dir := g.normalizer.PrivateObjectDir
	if dir == "" {
		return UploadTarget{}, fmt.Errorf("issue upload target: %w: private object dir not set", ErrConfigurationMissing)
	}

	id := uploadsDir + "/" + g.newID()
	bucket, key, ok := SplitBucketKey(dir + "/" + id)
	if !ok {
		return UploadTarget{}, fmt.Errorf("issue upload target: %w: private object dir %q has no bucket", ErrConfigurationMissing, dir)
	}

	expiresAt := g.now().Add(g.uploadTTL)
	signed, err := g.broker.SignURL(ctx, SignRequest{
		Bucket:    bucket,
		Key:       key,
		Method:    http.MethodPut,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return UploadTarget{}, fmt.Errorf("issue upload target: %w", err)
	}

	return UploadTarget{
		Method:    http.MethodPut,
		URL:       signed,
		ID:        id,
		Mode:      ModeRemote,
		ExpiresAt: expiresAt,
	}, nil
}

// FinalizeAndAuthorize normalizes the path a client uploaded to, attaches
// policy to the remote object and returns the canonical path. Local fallback
// paths are returned in canonical local form without a policy.
//
// An object that already carries a policy can only be finalized again by its
// owner; anyone else gets ErrUnauthorized. Concurrent calls by the owner for
// the same path both succeed and the last policy written wins.
func (g *Gateway) FinalizeAndAuthorize(ctx context.Context, rawPath string, policy AclPolicy) (string, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.FinalizeAndAuthorize")
	defer span.End()

	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return "", g.fail(span, fmt.Errorf("finalize: %w", err))
	}

	p := g.normalizer.Normalize(rawPath)
	span.SetAttributes(attribute.String("objectgate.path", p))

	if id, ok := LocalID(p); ok {
		if !IsValidObjectPath(id) {
			return "", g.fail(span, fmt.Errorf("finalize %s: %w", p, ErrObjectNotFound))
		}
		g.recorder.FallbackServed("finalize")
		slog.WarnContext(ctx, "finalizing local fallback object without ACL policy", "path", p)
		return p, nil
	}

	obj, err := g.lookup(ctx, p)
	if err != nil {
		return "", g.fail(span, fmt.Errorf("finalize: %w", err))
	}

	if obj.Policy != nil && obj.Policy.Owner != policy.Owner {
		return "", g.fail(span, fmt.Errorf("finalize %s: %w: owned by another principal", p, ErrUnauthorized))
	}

	if err := g.writePolicy(ctx, obj, policy); err != nil {
		return "", g.fail(span, fmt.Errorf("finalize: %w", err))
	}

	return p, nil
}

// AuthorizeAndStream resolves requestPath, checks perm for principal and
// streams the object into w. Local fallback paths are delegated to the local
// server without an ACL check.
//
// On success the response has been written. ErrObjectNotFound and
// ErrUnauthorized are returned before anything is written. An
// ErrStreamingFailure means headers were already sent.
func (g *Gateway) AuthorizeAndStream(w http.ResponseWriter, r *http.Request, requestPath string, principal Principal, perm Permission) error {
	ctx, span := g.tracer.Start(r.Context(), "gateway.AuthorizeAndStream")
	defer span.End()
	r = r.WithContext(ctx)

	p := g.normalizer.Normalize(requestPath)
	span.SetAttributes(attribute.String("objectgate.path", p))

	if id, ok := LocalID(p); ok {
		if err := g.serveLocal(w, r, id, "stream"); err != nil {
			return g.fail(span, fmt.Errorf("stream: %w", err))
		}
		return nil
	}

	obj, err := g.lookup(ctx, p)
	if err != nil {
		return g.fail(span, fmt.Errorf("stream: %w", err))
	}

	if !g.acl.CanAccess(principal, obj.Policy, perm) {
		return g.fail(span, fmt.Errorf("stream %s: %w", p, ErrUnauthorized))
	}

	public := obj.Policy != nil && obj.Policy.Visibility == VisibilityPublic
	if err := g.stream(w, r, obj, public); err != nil {
		return g.fail(span, err)
	}
	return nil
}

// DownloadURL returns a signed GET URL for an object principal may read.
// Broker failures are returned as-is; there is no fallback for reads.
func (g *Gateway) DownloadURL(ctx context.Context, objectPath string, principal Principal) (string, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.DownloadURL")
	defer span.End()

	p := g.normalizer.Normalize(objectPath)
	if id, ok := LocalID(p); ok {
		if !IsValidObjectPath(id) {
			return "", g.fail(span, fmt.Errorf("download url %s: %w", p, ErrObjectNotFound))
		}
		g.recorder.FallbackServed("download_url")
		return p, nil
	}

	obj, err := g.lookup(ctx, p)
	if err != nil {
		return "", g.fail(span, fmt.Errorf("download url: %w", err))
	}

	if !g.acl.CanAccess(principal, obj.Policy, PermissionRead) {
		return "", g.fail(span, fmt.Errorf("download url %s: %w", p, ErrUnauthorized))
	}

	if g.broker == nil {
		return "", g.fail(span, fmt.Errorf("download url: %w: no broker configured", ErrBrokerUnavailable))
	}

	signed, err := g.broker.SignURL(ctx, SignRequest{
		Bucket:    obj.Bucket,
		Key:       obj.Key,
		Method:    http.MethodGet,
		ExpiresAt: g.now().Add(g.uploadTTL),
	})
	if err != nil {
		g.recorder.BrokerFailed("download_url")
		return "", g.fail(span, fmt.Errorf("download url %s: %w", p, err))
	}

	return signed, nil
}

// Policy returns the policy of an object. Only the owner may read it.
func (g *Gateway) Policy(ctx context.Context, objectPath string, principal Principal) (AclPolicy, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.Policy")
	defer span.End()

	obj, err := g.ownedObject(ctx, objectPath, principal)
	if err != nil {
		return AclPolicy{}, g.fail(span, fmt.Errorf("get policy: %w", err))
	}
	return *obj.Policy, nil
}

// SetPolicy overwrites the whole policy of an object. Only the owner may do
// this and the owner cannot be reassigned. Callers wanting to add a single
// rule must read, modify and write.
func (g *Gateway) SetPolicy(ctx context.Context, objectPath string, principal Principal, policy AclPolicy) error {
	ctx, span := g.tracer.Start(ctx, "gateway.SetPolicy")
	defer span.End()

	obj, err := g.ownedObject(ctx, objectPath, principal)
	if err != nil {
		return g.fail(span, fmt.Errorf("set policy: %w", err))
	}

	if policy.Owner == "" {
		policy.Owner = obj.Policy.Owner
	}
	if policy.Owner != obj.Policy.Owner {
		return g.fail(span, fmt.Errorf("set policy: %w: owner cannot be reassigned", ErrInvalidPolicy))
	}

	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return g.fail(span, fmt.Errorf("set policy: %w", err))
	}

	if err := g.writePolicy(ctx, obj, policy); err != nil {
		return g.fail(span, fmt.Errorf("set policy: %w", err))
	}
	return nil
}

// ServePublicObject looks filePath up under each public search path in
// order and streams the first match with public caching.
func (g *Gateway) ServePublicObject(w http.ResponseWriter, r *http.Request, filePath string) error {
	ctx, span := g.tracer.Start(r.Context(), "gateway.ServePublicObject")
	defer span.End()
	r = r.WithContext(ctx)

	if len(g.publicPaths) == 0 {
		return g.fail(span, fmt.Errorf("serve public object: %w: no public search paths set", ErrConfigurationMissing))
	}
	if g.store == nil {
		return g.fail(span, fmt.Errorf("serve public object: %w: no object store configured", ErrConfigurationMissing))
	}
	if !IsValidObjectPath(filePath) {
		return g.fail(span, fmt.Errorf("serve public object %s: %w", filePath, ErrObjectNotFound))
	}

	for _, searchPath := range g.publicPaths {
		bucket, key, ok := SplitBucketKey(strings.TrimSuffix(searchPath, "/") + "/" + filePath)
		if !ok {
			continue
		}

		info, err := g.store.Stat(ctx, bucket, key)
		if errors.Is(err, ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return g.fail(span, fmt.Errorf("serve public object %s: %w", filePath, err))
		}

		obj := StoredObject{
			ID:          filePath,
			Bucket:      bucket,
			Key:         key,
			ContentType: info.ContentType,
			SizeBytes:   info.Size,
			ETag:        info.ETag,
			UpdatedAt:   info.LastModified,
			Mode:        ModeRemote,
		}
		if err := g.stream(w, r, obj, true); err != nil {
			return g.fail(span, err)
		}
		return nil
	}

	return g.fail(span, fmt.Errorf("serve public object %s: %w", filePath, ErrObjectNotFound))
}

// resolve maps a canonical /objects/ path onto its bucket and key.
func (g *Gateway) resolve(p string) (bucket, key string, err error) {
	id, ok := ObjectID(p)
	if !ok || !IsValidObjectPath(id) {
		return "", "", fmt.Errorf("resolve %s: %w", p, ErrObjectNotFound)
	}

	dir := g.normalizer.PrivateObjectDir
	if dir == "" {
		return "", "", fmt.Errorf("resolve %s: %w: private object dir not set", p, ErrConfigurationMissing)
	}
	if g.store == nil {
		return "", "", fmt.Errorf("resolve %s: %w: no object store configured", p, ErrConfigurationMissing)
	}

	bucket, key, ok = SplitBucketKey(dir + "/" + id)
	if !ok {
		return "", "", fmt.Errorf("resolve %s: %w", p, ErrObjectNotFound)
	}
	return bucket, key, nil
}

// lookup resolves p and loads the object's metadata and policy. A policy
// that fails to decode is logged and treated as absent, which denies access.
func (g *Gateway) lookup(ctx context.Context, p string) (StoredObject, error) {
	bucket, key, err := g.resolve(p)
	if err != nil {
		return StoredObject{}, err
	}

	info, err := g.store.Stat(ctx, bucket, key)
	if err != nil {
		return StoredObject{}, fmt.Errorf("lookup %s: %w", p, err)
	}

	policy, err := PolicyFromMetadata(info.Metadata)
	if err != nil {
		slog.ErrorContext(ctx, "object has malformed acl policy", "path", p, "err", err)
		policy = nil
	}

	id, _ := ObjectID(p)
	return StoredObject{
		ID:          id,
		Bucket:      bucket,
		Key:         key,
		ContentType: info.ContentType,
		SizeBytes:   info.Size,
		ETag:        info.ETag,
		UpdatedAt:   info.LastModified,
		Mode:        ModeRemote,
		Policy:      policy,
	}, nil
}

func (g *Gateway) ownedObject(ctx context.Context, objectPath string, principal Principal) (StoredObject, error) {
	p := g.normalizer.Normalize(objectPath)
	if IsLocalPath(p) {
		return StoredObject{}, fmt.Errorf("%s: %w: local fallback objects carry no policy", p, ErrInvalidInput)
	}

	obj, err := g.lookup(ctx, p)
	if err != nil {
		return StoredObject{}, err
	}

	if obj.Policy == nil || principal.IsAnonymous() || principal.ID != obj.Policy.Owner {
		return StoredObject{}, fmt.Errorf("%s: %w", p, ErrUnauthorized)
	}
	return obj, nil
}

func (g *Gateway) writePolicy(ctx context.Context, obj StoredObject, policy AclPolicy) error {
	encoded, err := EncodePolicy(policy)
	if err != nil {
		return err
	}

	err = g.store.SetMetadata(ctx, obj.Bucket, obj.Key, map[string]string{PolicyMetadataKey: encoded})
	if err != nil {
		return fmt.Errorf("write policy %s/%s: %w", obj.Bucket, obj.Key, err)
	}
	return nil
}

func (g *Gateway) serveLocal(w http.ResponseWriter, r *http.Request, id, operation string) error {
	if !IsValidObjectPath(id) || g.local == nil {
		return fmt.Errorf("serve local %s: %w", id, ErrObjectNotFound)
	}

	g.recorder.FallbackServed(operation)
	slog.WarnContext(r.Context(), "serving local fallback object without ACL check",
		"object_id", id, "operation", operation)

	return g.local.ServeLocal(w, r, id)
}

// stream copies the object into w. The store reader is always closed,
// including when the client goes away mid-transfer.
func (g *Gateway) stream(w http.ResponseWriter, r *http.Request, obj StoredObject, public bool) error {
	ctx := r.Context()

	body, err := g.store.Open(ctx, obj.Bucket, obj.Key)
	if err != nil {
		return fmt.Errorf("stream %s/%s: %w", obj.Bucket, obj.Key, err)
	}
	defer func() {
		if closeErr := body.Close(); closeErr != nil {
			slog.WarnContext(ctx, "failed to close object reader", "bucket", obj.Bucket, "key", obj.Key, "err", closeErr)
		}
	}()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	visibility := string(VisibilityPrivate)
	if public {
		visibility = string(VisibilityPublic)
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	if obj.SizeBytes >= 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.SizeBytes, 10))
	}
	h.Set("Cache-Control", fmt.Sprintf("%s, max-age=%d", visibility, int64(g.cacheMaxAge.Seconds())))
	if obj.ETag != "" {
		h.Set("ETag", `"`+strings.Trim(obj.ETag, `"`)+`"`)
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}

	written, err := io.Copy(w, body)
	if err != nil {
		slog.WarnContext(ctx, "download interrupted", "bucket", obj.Bucket, "key", obj.Key,
			"bytes_written", written, "err", err)
		return fmt.Errorf("stream %s/%s: %w: %w", obj.Bucket, obj.Key, ErrStreamingFailure, err)
	}

	return nil
}

func (g *Gateway) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
