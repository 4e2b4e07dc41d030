package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// Seller is the shop owned by a single user.
type Seller struct {
	ID                     uuid.UUID                      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                 uuid.UUID                      `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	ShopName               string                         `gorm:"column:shop_name;not null"`
	ShopSlug               string                         `gorm:"column:shop_slug;not null;uniqueIndex"`
	Description            *string                        `gorm:"column:description"`
	LogoURL                *string                        `gorm:"column:logo_url"`
	BannerURL              *string                        `gorm:"column:banner_url"`
	BusinessType           *enums.BusinessType            `gorm:"column:business_type;type:text"`
	BusinessName           *string                        `gorm:"column:business_name"`
	TaxID                  *string                        `gorm:"column:tax_id"`
	BusinessLicense        *string                        `gorm:"column:business_license"`
	BusinessAddress        *string                        `gorm:"column:business_address"`
	BusinessPhone          *string                        `gorm:"column:business_phone"`
	VerificationStatus     enums.SellerVerificationStatus `gorm:"column:verification_status;type:text;not null;default:'unsubmitted'"`
	RiskScore              int                            `gorm:"column:risk_score;not null;default:0"`
	StripeConnectAccountID *string                        `gorm:"column:stripe_connect_account_id"`
	PayoutSchedule         string                         `gorm:"column:payout_schedule;not null;default:'weekly'"`
	CreatedAt              time.Time                      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                      `gorm:"column:updated_at;autoUpdateTime"`
}
