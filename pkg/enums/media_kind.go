package enums

import "fmt"

// MediaKind is the purpose of an uploaded object.
type MediaKind string

const (
	MediaKindListing MediaKind = "listing"
	MediaKindProfile MediaKind = "profile"
	MediaKindReview  MediaKind = "review"
	MediaKindShop    MediaKind = "shop"
)

var validMediaKinds = []MediaKind{
	MediaKindListing,
	MediaKindProfile,
	MediaKindReview,
	MediaKindShop,
}

// String implements fmt.Stringer.
func (v MediaKind) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v MediaKind) IsValid() bool {
	for _, candidate := range validMediaKinds {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseMediaKind converts raw input into a MediaKind.
func ParseMediaKind(value string) (MediaKind, error) {
	for _, candidate := range validMediaKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid media kind %q", value)
}
