package media

import (
	"net/url"
	"path"
	"strings"
	"sync/atomic"
)

// ObjectPrefix is the public path images are served under.
const ObjectPrefix = "/objects/"

const gcsHost = "storage.googleapis.com"

var servedBucket atomic.Pointer[string]

// SetServedBucket names the bucket /objects/ reads from. GCS URLs that point
// at any other bucket are left unchanged. An empty name accepts every bucket.
func SetServedBucket(bucket string) {
	bucket = strings.TrimSpace(bucket)
	servedBucket.Store(&bucket)
}

func isServedBucket(bucket string) bool {
	want := servedBucket.Load()
	if want == nil || *want == "" {
		return true
	}
	return bucket == *want
}

// NormalizeObjectPath maps every stored image reference to /objects/<name>.
// Accepted forms are path-style and virtual-host GCS URLs (signed or not),
// gs:// URIs and already normalized paths. Other absolute URLs and bare
// strings are returned unchanged, as are GCS URLs for a bucket other than the
// served one.
func NormalizeObjectPath(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return value
	}
	if strings.HasPrefix(value, ObjectPrefix) {
		return ObjectPrefix + cleanObject(strings.TrimPrefix(value, ObjectPrefix))
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" {
		return value
	}
	var bucket, object string
	switch {
	case u.Scheme == "gs":
		bucket, object = u.Host, strings.TrimPrefix(u.Path, "/")
	case u.Host == gcsHost:
		// /<bucket>/<object>
		parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		if len(parts) < 2 {
			return value
		}
		bucket, object = parts[0], parts[1]
	case strings.HasSuffix(u.Host, "."+gcsHost):
		bucket, object = strings.TrimSuffix(u.Host, "."+gcsHost), strings.TrimPrefix(u.Path, "/")
	default:
		return value
	}
	if !isServedBucket(bucket) {
		return value
	}
	return fromObject(object, value)
}

// NormalizeAll applies NormalizeObjectPath to each entry, dropping blanks.
func NormalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := NormalizeObjectPath(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ObjectName returns the bucket object for a normalized path, or false when
// the value does not point at the bucket.
func ObjectName(value string) (string, bool) {
	n := NormalizeObjectPath(value)
	if !strings.HasPrefix(n, ObjectPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(n, ObjectPrefix)
	return name, name != ""
}

func fromObject(object, fallback string) string {
	object = cleanObject(object)
	if object == "" {
		return fallback
	}
	return ObjectPrefix + object
}

func cleanObject(object string) string {
	if unescaped, err := url.PathUnescape(object); err == nil {
		object = unescaped
	}
	object = strings.TrimPrefix(path.Clean("/"+object), "/")
	if object == "." {
		return ""
	}
	return object
}
