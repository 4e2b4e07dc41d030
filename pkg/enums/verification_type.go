package enums

import "fmt"

// VerificationType names the check a verification code proves.
type VerificationType string

const (
	VerificationTypeEmail    VerificationType = "email"
	VerificationTypePhone    VerificationType = "phone"
	VerificationTypeIdentity VerificationType = "identity"
	VerificationTypeAddress  VerificationType = "address"
)

var validVerificationTypes = []VerificationType{
	VerificationTypeEmail,
	VerificationTypePhone,
	VerificationTypeIdentity,
	VerificationTypeAddress,
}

// String implements fmt.Stringer.
func (v VerificationType) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v VerificationType) IsValid() bool {
	for _, candidate := range validVerificationTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVerificationType converts raw input into a VerificationType.
func ParseVerificationType(value string) (VerificationType, error) {
	for _, candidate := range validVerificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification type %q", value)
}
