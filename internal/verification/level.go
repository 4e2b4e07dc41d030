package verification

import (
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

const (
	approvedLevelFloor = 4
	maxLevel           = 5
)

// ComputeLevel counts the checks a user has passed. Seller approval adds one
// and lifts the result to at least approvedLevelFloor.
func ComputeLevel(user *models.User, sellerApproved bool) int {
	if user == nil {
		return 0
	}
	level := 0
	for _, ok := range []bool{user.EmailVerified, user.PhoneVerified, user.IdentityVerified, user.AddressVerified} {
		if ok {
			level++
		}
	}
	if sellerApproved {
		level++
		if level < approvedLevelFloor {
			level = approvedLevelFloor
		}
	}
	if level > maxLevel {
		level = maxLevel
	}
	return level
}

// flagColumn maps a verification type to the users column it sets.
func flagColumn(t enums.VerificationType) string {
	switch t {
	case enums.VerificationTypeEmail:
		return "email_verified"
	case enums.VerificationTypePhone:
		return "phone_verified"
	case enums.VerificationTypeIdentity:
		return "identity_verified"
	case enums.VerificationTypeAddress:
		return "address_verified"
	}
	return ""
}

func setFlag(user *models.User, t enums.VerificationType) {
	switch t {
	case enums.VerificationTypeEmail:
		user.EmailVerified = true
	case enums.VerificationTypePhone:
		user.PhoneVerified = true
	case enums.VerificationTypeIdentity:
		user.IdentityVerified = true
	case enums.VerificationTypeAddress:
		user.AddressVerified = true
	}
}
