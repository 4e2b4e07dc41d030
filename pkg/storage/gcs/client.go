package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

const pingTimeout = 5 * time.Second

// ErrNotFound is returned when the object does not exist.
var ErrNotFound = errors.New("gcs object not found")

// Client wraps a storage client bound to the marketplace bucket.
type Client struct {
	storage *storage.Client
	bucket  string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// ObjectReader streams object content along with its metadata.
type ObjectReader struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectAttrs is the object metadata the media layer reads.
type ObjectAttrs struct {
	Name        string
	ContentType string
	Size        int64
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if gcp.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	}
	sc, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	client := &Client{storage: sc, bucket: bucket}
	if err := client.Ping(ctx); err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "gcs client initialized")
	}
	return client, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

func (c *Client) Close() error {
	if c == nil || c.storage == nil {
		return nil
	}
	return c.storage.Close()
}

// Ping checks the bucket is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.storage == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := c.storage.Bucket(c.bucket).Attrs(ctx)
	return err
}

// SignedUploadURL returns a V4 signed PUT URL for object. The uploader must
// send the same Content-Type header.
func (c *Client) SignedUploadURL(object, contentType string, ttl time.Duration) (string, error) {
	if c == nil || c.storage == nil {
		return "", errors.New("gcs client not initialized")
	}
	if object == "" {
		return "", errors.New("object name is required")
	}
	if ttl <= 0 {
		return "", errors.New("signed url ttl must be positive")
	}
	return c.storage.Bucket(c.bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     time.Now().Add(ttl),
	})
}

// Open streams an object.
func (c *Client) Open(ctx context.Context, object string) (*ObjectReader, error) {
	r, err := c.storage.Bucket(c.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &ObjectReader{ReadCloser: r, ContentType: r.Attrs.ContentType, Size: r.Attrs.Size}, nil
}

// ReadHead returns up to n leading bytes of an object.
func (c *Client) ReadHead(ctx context.Context, object string, n int64) ([]byte, error) {
	r, err := c.storage.Bucket(c.bucket).Object(object).NewRangeReader(ctx, 0, n)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// Attrs returns object metadata.
func (c *Client) Attrs(ctx context.Context, object string) (*ObjectAttrs, error) {
	attrs, err := c.storage.Bucket(c.bucket).Object(object).Attrs(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &ObjectAttrs{Name: attrs.Name, ContentType: attrs.ContentType, Size: attrs.Size}, nil
}

// SetContentType rewrites the stored content type metadata.
func (c *Client) SetContentType(ctx context.Context, object, contentType string) error {
	_, err := c.storage.Bucket(c.bucket).Object(object).Update(ctx, storage.ObjectAttrsToUpdate{ContentType: contentType})
	return mapErr(err)
}

// Delete removes an object. A missing object is not an error.
func (c *Client) Delete(ctx context.Context, object string) error {
	err := c.storage.Bucket(c.bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func mapErr(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}
