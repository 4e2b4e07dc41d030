package enums

import "fmt"

// VerificationRequestStatus is the lifecycle of a single issued code.
type VerificationRequestStatus string

const (
	VerificationRequestPending    VerificationRequestStatus = "pending"
	VerificationRequestVerified   VerificationRequestStatus = "verified"
	VerificationRequestExpired    VerificationRequestStatus = "expired"
	VerificationRequestSuperseded VerificationRequestStatus = "superseded"
	VerificationRequestLocked     VerificationRequestStatus = "locked"
)

var validVerificationRequestStatuses = []VerificationRequestStatus{
	VerificationRequestPending,
	VerificationRequestVerified,
	VerificationRequestExpired,
	VerificationRequestSuperseded,
	VerificationRequestLocked,
}

// String implements fmt.Stringer.
func (v VerificationRequestStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v VerificationRequestStatus) IsValid() bool {
	for _, candidate := range validVerificationRequestStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVerificationRequestStatus converts raw input into a VerificationRequestStatus.
func ParseVerificationRequestStatus(value string) (VerificationRequestStatus, error) {
	for _, candidate := range validVerificationRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification request status %q", value)
}
