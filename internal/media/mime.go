package media

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// sniffBytes is how much of an object is read to detect its type.
const sniffBytes = 3072

var imageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

var allowedByKind = map[enums.MediaKind][]string{
	enums.MediaKindListing: imageTypes,
	enums.MediaKindProfile: {"image/png", "image/jpeg", "image/webp"},
	enums.MediaKindReview:  imageTypes,
	enums.MediaKindShop:    imageTypes,
}

func parseContentType(value string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(value))
	if err != nil || mediaType == "" {
		return "", false
	}
	return strings.ToLower(mediaType), true
}

func allowedFor(kind enums.MediaKind, contentType string) bool {
	for _, candidate := range allowedByKind[kind] {
		if candidate == contentType {
			return true
		}
	}
	return false
}

// DetectContentType sniffs the leading bytes of an object.
func DetectContentType(head []byte) string {
	return mimetype.Detect(head).String()
}

func isImage(head []byte) bool {
	detected := mimetype.Detect(head)
	for _, candidate := range imageTypes {
		if detected.Is(candidate) {
			return true
		}
	}
	return false
}
