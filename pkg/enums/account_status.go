package enums

import "fmt"

// AccountStatus gates whether a user may sign in.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusBanned    AccountStatus = "banned"
)

var validAccountStatuses = []AccountStatus{
	AccountStatusActive,
	AccountStatusSuspended,
	AccountStatusBanned,
}

// String implements fmt.Stringer.
func (v AccountStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v AccountStatus) IsValid() bool {
	for _, candidate := range validAccountStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseAccountStatus converts raw input into a AccountStatus.
func ParseAccountStatus(value string) (AccountStatus, error) {
	for _, candidate := range validAccountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account status %q", value)
}
