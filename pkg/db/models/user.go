package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// User is the identity created on first OIDC login. Users are never deleted;
// AccountStatus carries bans and suspensions.
type User struct {
	ID                    uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OIDCSubject           string                  `gorm:"column:oidc_subject;not null;uniqueIndex"`
	Email                 *string                 `gorm:"column:email;uniqueIndex"`
	FirstName             *string                 `gorm:"column:first_name"`
	LastName              *string                 `gorm:"column:last_name"`
	ProfileImageURL       *string                 `gorm:"column:profile_image_url"`
	Phone                 *string                 `gorm:"column:phone"`
	Role                  enums.UserRole          `gorm:"column:role;type:text;not null;default:'buyer'"`
	AccountStatus         enums.AccountStatus     `gorm:"column:account_status;type:text;not null;default:'active'"`
	EmailVerified         bool                    `gorm:"column:email_verified;not null;default:false"`
	PhoneVerified         bool                    `gorm:"column:phone_verified;not null;default:false"`
	IdentityVerified      bool                    `gorm:"column:identity_verified;not null;default:false"`
	AddressVerified       bool                    `gorm:"column:address_verified;not null;default:false"`
	VerificationLevel     int                     `gorm:"column:verification_level;not null;default:0"`
	StripeCustomerID      *string                 `gorm:"column:stripe_customer_id;index"`
	StripeSubscriptionID  *string                 `gorm:"column:stripe_subscription_id;index"`
	SubscriptionState     enums.SubscriptionState `gorm:"column:subscription_state;type:text;not null;default:'none'"`
	SubscriptionUpdatedAt *time.Time              `gorm:"column:subscription_updated_at"`
	LastLoginAt           *time.Time              `gorm:"column:last_login_at"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// DisplayName prefers the full name, then the e-mail.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	var parts []string
	for _, p := range []*string{u.FirstName, u.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if u.Email != nil {
		return *u.Email
	}
	return ""
}

// CanSignIn reports whether the account status allows sessions.
func (u *User) CanSignIn() bool {
	return u != nil && u.AccountStatus == enums.AccountStatusActive
}
