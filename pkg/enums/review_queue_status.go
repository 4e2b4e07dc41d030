package enums

import "fmt"

// ReviewQueueStatus is the state of a seller review queue entry.
type ReviewQueueStatus string

const (
	ReviewQueuePending  ReviewQueueStatus = "pending"
	ReviewQueueApproved ReviewQueueStatus = "approved"
	ReviewQueueRejected ReviewQueueStatus = "rejected"
)

var validReviewQueueStatuses = []ReviewQueueStatus{
	ReviewQueuePending,
	ReviewQueueApproved,
	ReviewQueueRejected,
}

// String implements fmt.Stringer.
func (v ReviewQueueStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v ReviewQueueStatus) IsValid() bool {
	for _, candidate := range validReviewQueueStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseReviewQueueStatus converts raw input into a ReviewQueueStatus.
func ParseReviewQueueStatus(value string) (ReviewQueueStatus, error) {
	for _, candidate := range validReviewQueueStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid review queue status %q", value)
}
