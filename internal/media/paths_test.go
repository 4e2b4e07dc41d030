package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeObjectPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://storage.googleapis.com/curio-media/uploads/listing/a.png?X-Goog-Algorithm=GOOG4-RSA-SHA256&X-Goog-Signature=abc", "/objects/uploads/listing/a.png"},
		{"https://curio-media.storage.googleapis.com/uploads/listing/b.jpg", "/objects/uploads/listing/b.jpg"},
		{"gs://curio-media/uploads/review/c.webp", "/objects/uploads/review/c.webp"},
		{"/objects/uploads/listing/d.png", "/objects/uploads/listing/d.png"},
		{"/objects/uploads/../uploads/listing/e.png", "/objects/uploads/listing/e.png"},
		{"https://storage.googleapis.com/curio-media/uploads/listing/with%20space.png", "/objects/uploads/listing/with space.png"},
		{"https://cdn.example.com/x.png", "https://cdn.example.com/x.png"},
		{"https://storage.googleapis.com/only-bucket", "https://storage.googleapis.com/only-bucket"},
		{"  ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeObjectPath(tc.in), tc.in)
	}
}

func TestNormalizeObjectPathKeepsForeignBuckets(t *testing.T) {
	SetServedBucket("curio-media")
	t.Cleanup(func() { SetServedBucket("") })

	cases := []struct {
		in   string
		want string
	}{
		{"https://storage.googleapis.com/curio-media/uploads/listing/a.png", "/objects/uploads/listing/a.png"},
		{"https://curio-media.storage.googleapis.com/uploads/listing/b.jpg", "/objects/uploads/listing/b.jpg"},
		{"gs://curio-media/uploads/review/c.webp", "/objects/uploads/review/c.webp"},
		{"https://storage.googleapis.com/other-bucket/uploads/listing/a.png", "https://storage.googleapis.com/other-bucket/uploads/listing/a.png"},
		{"https://other-bucket.storage.googleapis.com/uploads/listing/b.jpg", "https://other-bucket.storage.googleapis.com/uploads/listing/b.jpg"},
		{"gs://other-bucket/uploads/review/c.webp", "gs://other-bucket/uploads/review/c.webp"},
		{"/objects/uploads/listing/d.png", "/objects/uploads/listing/d.png"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeObjectPath(tc.in), tc.in)
	}

	_, ok := ObjectName("gs://other-bucket/uploads/listing/a.png")
	assert.False(t, ok)
}

func TestNormalizeObjectPathIsIdempotent(t *testing.T) {
	raw := "https://storage.googleapis.com/bucket/uploads/listing/x.png?X-Goog-Expires=900"
	once := NormalizeObjectPath(raw)
	assert.Equal(t, once, NormalizeObjectPath(once))
}

func TestNormalizeAllDropsBlanks(t *testing.T) {
	got := NormalizeAll([]string{"gs://b/uploads/a.png", "", "/objects/uploads/b.png"})
	assert.Equal(t, []string{"/objects/uploads/a.png", "/objects/uploads/b.png"}, got)
}

func TestObjectName(t *testing.T) {
	name, ok := ObjectName("gs://bucket/uploads/listing/a.png")
	assert.True(t, ok)
	assert.Equal(t, "uploads/listing/a.png", name)

	_, ok = ObjectName("https://cdn.example.com/a.png")
	assert.False(t, ok)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "my-photo.png", sanitizeFileName(" my photo.png "))
	assert.Equal(t, "evil.png", sanitizeFileName("../../etc/evil.png"))
	assert.Equal(t, "caf_.jpg", sanitizeFileName("café.jpg"))
	assert.Equal(t, "", sanitizeFileName(".."))
}
