package enums

import "fmt"

// SellerVerificationStatus summarizes the business review of a seller.
type SellerVerificationStatus string

const (
	SellerVerificationUnsubmitted SellerVerificationStatus = "unsubmitted"
	SellerVerificationPending     SellerVerificationStatus = "pending"
	SellerVerificationApproved    SellerVerificationStatus = "approved"
	SellerVerificationRejected    SellerVerificationStatus = "rejected"
)

var validSellerVerificationStatuses = []SellerVerificationStatus{
	SellerVerificationUnsubmitted,
	SellerVerificationPending,
	SellerVerificationApproved,
	SellerVerificationRejected,
}

// String implements fmt.Stringer.
func (v SellerVerificationStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v SellerVerificationStatus) IsValid() bool {
	for _, candidate := range validSellerVerificationStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseSellerVerificationStatus converts raw input into a SellerVerificationStatus.
func ParseSellerVerificationStatus(value string) (SellerVerificationStatus, error) {
	for _, candidate := range validSellerVerificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid seller verification status %q", value)
}
