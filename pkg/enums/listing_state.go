package enums

import "fmt"

// ListingState tracks listing visibility.
type ListingState string

const (
	ListingStateDraft     ListingState = "draft"
	ListingStatePublished ListingState = "published"
	ListingStateSuspended ListingState = "suspended"
)

var validListingStates = []ListingState{
	ListingStateDraft,
	ListingStatePublished,
	ListingStateSuspended,
}

// String implements fmt.Stringer.
func (v ListingState) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v ListingState) IsValid() bool {
	for _, candidate := range validListingStates {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseListingState converts raw input into a ListingState.
func ParseListingState(value string) (ListingState, error) {
	for _, candidate := range validListingStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing state %q", value)
}
