package enums

import "fmt"

// ReviewStatus controls whether a product review is shown.
type ReviewStatus string

const (
	ReviewStatusVisible ReviewStatus = "visible"
	ReviewStatusHidden  ReviewStatus = "hidden"
)

var validReviewStatuses = []ReviewStatus{
	ReviewStatusVisible,
	ReviewStatusHidden,
}

// String implements fmt.Stringer.
func (v ReviewStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v ReviewStatus) IsValid() bool {
	for _, candidate := range validReviewStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseReviewStatus converts raw input into a ReviewStatus.
func ParseReviewStatus(value string) (ReviewStatus, error) {
	for _, candidate := range validReviewStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid review status %q", value)
}
