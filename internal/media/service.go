package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/storage/gcs"
)

const (
	uploadPrefix   = "uploads/"
	maxFileNameLen = 120
)

type objectStore interface {
	SignedUploadURL(object, contentType string, ttl time.Duration) (string, error)
	Open(ctx context.Context, object string) (*gcs.ObjectReader, error)
	ReadHead(ctx context.Context, object string, n int64) ([]byte, error)
	Attrs(ctx context.Context, object string) (*gcs.ObjectAttrs, error)
	SetContentType(ctx context.Context, object, contentType string) error
	Delete(ctx context.Context, object string) error
}

var _ objectStore = (*gcs.Client)(nil)

// Service signs uploads, validates finished uploads and streams objects.
type Service interface {
	PresignUpload(ctx context.Context, userID uuid.UUID, input UploadInput) (*UploadResult, error)
	FinalizeUpload(ctx context.Context, userID uuid.UUID, objectPath string) (*FinalizeResult, error)
	Open(ctx context.Context, objectPath string) (*Object, error)
}

// UploadInput is the client's upload request.
type UploadInput struct {
	Kind        enums.MediaKind `json:"kind" validate:"required"`
	ContentType string          `json:"content_type" validate:"required"`
	FileName    string          `json:"file_name" validate:"required,max=255"`
	SizeBytes   int64           `json:"size_bytes" validate:"omitempty,gte=0"`
}

// UploadResult holds the signed URL and the path to store once uploaded.
type UploadResult struct {
	UploadURL   string    `json:"upload_url"`
	ObjectPath  string    `json:"object_path"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type FinalizeResult struct {
	ObjectPath  string `json:"object_path"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Object is a readable stored object. Callers must Close it.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// ServiceParams groups the media service dependencies.
type ServiceParams struct {
	Store     objectStore
	Logger    *logger.Logger
	UploadTTL time.Duration
	MaxBytes  int64
	Now       func() time.Time
}

type service struct {
	store     objectStore
	logg      *logger.Logger
	uploadTTL time.Duration
	maxBytes  int64
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.UploadTTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive")
	}
	if params.MaxBytes <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:     params.Store,
		logg:      params.Logger,
		uploadTTL: params.UploadTTL,
		maxBytes:  params.MaxBytes,
		now:       now,
	}, nil
}

func (s *service) PresignUpload(ctx context.Context, userID uuid.UUID, input UploadInput) (*UploadResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid media kind")
	}
	contentType, ok := parseContentType(input.ContentType)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content_type is invalid")
	}
	if !allowedFor(input.Kind, contentType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content_type not allowed for media kind").
			WithDetails(map[string]any{"allowed": allowedByKind[input.Kind]})
	}
	if input.SizeBytes > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	name := sanitizeFileName(input.FileName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_name is required")
	}

	object := fmt.Sprintf("%s%s/%s-%s", uploadPrefix, input.Kind, uuid.NewString(), name)
	signed, err := s.store.SignedUploadURL(object, contentType, s.uploadTTL)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "object", object), "sign upload url failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}
	return &UploadResult{
		UploadURL:   signed,
		ObjectPath:  ObjectPrefix + object,
		ContentType: contentType,
		ExpiresAt:   s.now().UTC().Add(s.uploadTTL),
	}, nil
}

// FinalizeUpload checks a finished upload. Objects that are too large or
// whose bytes are not an image are deleted.
func (s *service) FinalizeUpload(ctx context.Context, userID uuid.UUID, objectPath string) (*FinalizeResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	object, ok := ObjectName(objectPath)
	if !ok || !strings.HasPrefix(object, uploadPrefix) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "object path is invalid")
	}
	ctx = s.logg.WithField(ctx, "object", object)

	attrs, err := s.store.Attrs(ctx, object)
	if err != nil {
		if errors.Is(err, gcs.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "upload not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read object attributes")
	}
	if attrs.Size > s.maxBytes {
		s.discard(ctx, object)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	head, err := s.store.ReadHead(ctx, object, sniffBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read object")
	}
	if !isImage(head) {
		s.discard(ctx, object)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload is not a supported image").
			WithDetails(map[string]any{"detected": DetectContentType(head)})
	}
	detected := DetectContentType(head)
	if !strings.EqualFold(attrs.ContentType, detected) {
		if err := s.store.SetContentType(ctx, object, detected); err != nil {
			s.logg.Warn(ctx, "object content type not updated")
		}
	}
	return &FinalizeResult{ObjectPath: ObjectPrefix + object, ContentType: detected, SizeBytes: attrs.Size}, nil
}

func (s *service) discard(ctx context.Context, object string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), object); err != nil {
		s.logg.Error(ctx, "delete rejected upload failed", err)
		return
	}
	s.logg.Info(ctx, "rejected upload deleted")
}

// Open streams an object. When no content type was stored the leading bytes
// are sniffed.
func (s *service) Open(ctx context.Context, objectPath string) (*Object, error) {
	object, ok := ObjectName(objectPath)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "object not found")
	}
	r, err := s.store.Open(ctx, object)
	if err != nil {
		if errors.Is(err, gcs.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "object not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open object")
	}
	out := &Object{ReadCloser: r, ContentType: r.ContentType, Size: r.Size}
	if strings.TrimSpace(out.ContentType) == "" {
		buffered := bufio.NewReaderSize(r, sniffBytes)
		head, _ := buffered.Peek(sniffBytes)
		out.ContentType = DetectContentType(head)
		out.ReadCloser = struct {
			io.Reader
			io.Closer
		}{buffered, r}
	}
	return out, nil
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range clean {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_'):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	result := strings.Trim(b.String(), "-_.")
	if len(result) > maxFileNameLen {
		result = result[len(result)-maxFileNameLen:]
	}
	return result
}
