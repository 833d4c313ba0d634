package objectgate

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// ObjectsPrefix starts every canonical, ACL-checked object path.
	ObjectsPrefix = "/objects/"
	// LocalUploadsPrefix starts every canonical local fallback path.
	LocalUploadsPrefix = "/local-uploads/"
	// LocalUploadTargetPrefix is the path clients PUT local fallback bytes to.
	LocalUploadTargetPrefix = "/api/local-uploads-upload/"
)

// localPrefixes are the local fallback forms, with and without the
// reverse-proxy mount point.
var localPrefixes = []string{
	"/api/local-uploads-upload/",
	"/api/local-uploads/",
	"/local-uploads-upload/",
	"/local-uploads/",
}

// virtualHostedS3 matches AWS virtual-hosted-style hosts, where the bucket is
// the leading part of the host name instead of the first path segment.
var virtualHostedS3 = regexp.MustCompile(`^([a-z0-9][a-z0-9.-]*?)\.s3(?:[.-][a-z0-9.-]+)?\.amazonaws\.com(?:\.cn)?$`)

// PathNormalizer rewrites the address forms clients send back into the
// canonical forms the gateway reasons about.
//
// PrivateObjectDir is the "/<bucket>/<dir>" prefix under which uploads are
// issued. It may be empty when running without a remote store.
type PathNormalizer struct {
	PrivateObjectDir string
}

// Normalize maps raw onto one of the canonical forms:
//
//   - absolute URLs are reduced to their path (query and fragment dropped);
//     for virtual-hosted S3 URLs the bucket is taken back from the host
//   - any local fallback form becomes /local-uploads/<id>
//   - /objects/<id> is returned as-is
//   - a path under PrivateObjectDir becomes /objects/<rest>
//
// Anything else, including malformed input, is returned unchanged.
// Normalize never performs I/O and never fails.
func (n PathNormalizer) Normalize(raw string) string {
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return raw
		}
		if m := virtualHostedS3.FindStringSubmatch(strings.ToLower(u.Hostname())); m != nil {
			return n.Normalize("/" + m[1] + u.Path)
		}
		return n.Normalize(u.Path)
	}

	for _, prefix := range localPrefixes {
		if id, ok := strings.CutPrefix(raw, prefix); ok && id != "" {
			return LocalUploadsPrefix + id
		}
	}

	if strings.HasPrefix(raw, ObjectsPrefix) {
		return raw
	}

	dir := strings.TrimSuffix(n.PrivateObjectDir, "/")
	if dir != "" {
		if rest, ok := strings.CutPrefix(raw, dir+"/"); ok && rest != "" {
			return ObjectsPrefix + rest
		}
	}

	return raw
}

// LocalID returns the id of a canonical local fallback path.
func LocalID(p string) (string, bool) {
	id, ok := strings.CutPrefix(p, LocalUploadsPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// ObjectID returns the id of a canonical /objects/ path.
func ObjectID(p string) (string, bool) {
	id, ok := strings.CutPrefix(p, ObjectsPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// IsLocalPath reports whether p is a canonical local fallback path.
func IsLocalPath(p string) bool {
	_, ok := LocalID(p)
	return ok
}

// SplitBucketKey splits "/<bucket>/<key...>" into its two parts.
func SplitBucketKey(fullPath string) (bucket, key string, ok bool) {
	p := strings.TrimPrefix(fullPath, "/")
	bucket, key, found := strings.Cut(p, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// IsValidObjectPath validates that an object id or key is safe to hand to a store.
// It checks that the path:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - does not contain ".." (path traversal)
//   - does not contain "//" (empty segments)
//   - does not contain invalid characters: \ ? # ~
//   - is valid UTF-8
//   - does not contain "." segments
//   - does not contain control characters or whitespace
func IsValidObjectPath(p string) bool {
	if p == "" || p == "/" || p == "." {
		return false
	}

	if p[0] == '/' {
		return false
	}

	if strings.HasSuffix(p, "/") {
		return false
	}

	if strings.Contains(p, "..") {
		return false
	}

	if strings.Contains(p, "//") {
		return false
	}

	if strings.ContainsAny(p, `\?#~`) {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	if strings.HasPrefix(p, "./") || strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return false
	}

	for _, r := range p {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}
