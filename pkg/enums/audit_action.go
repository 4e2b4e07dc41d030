package enums

import "fmt"

// AuditAction labels a verification audit log row.
type AuditAction string

const (
	AuditCodeIssued           AuditAction = "code_issued"
	AuditCodeVerified         AuditAction = "code_verified"
	AuditCodeFailed           AuditAction = "code_failed"
	AuditCodeLocked           AuditAction = "code_locked"
	AuditSellerSubmitted      AuditAction = "seller_submitted"
	AuditSellerApproved       AuditAction = "seller_approved"
	AuditSellerRejected       AuditAction = "seller_rejected"
	AuditRoleChanged          AuditAction = "role_changed"
	AuditAccountStatusChanged AuditAction = "account_status_changed"
)

var validAuditActions = []AuditAction{
	AuditCodeIssued,
	AuditCodeVerified,
	AuditCodeFailed,
	AuditCodeLocked,
	AuditSellerSubmitted,
	AuditSellerApproved,
	AuditSellerRejected,
	AuditRoleChanged,
	AuditAccountStatusChanged,
}

// String implements fmt.Stringer.
func (v AuditAction) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into a AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
