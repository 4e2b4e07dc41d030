package sellers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

// SellerDTO is the owner's view of a shop, business fields included.
type SellerDTO struct {
	ID                 uuid.UUID                      `json:"id"`
	UserID             uuid.UUID                      `json:"user_id"`
	ShopName           string                         `json:"shop_name"`
	ShopSlug           string                         `json:"shop_slug"`
	Description        *string                        `json:"description,omitempty"`
	LogoURL            *string                        `json:"logo_url,omitempty"`
	BannerURL          *string                        `json:"banner_url,omitempty"`
	BusinessType       *enums.BusinessType            `json:"business_type,omitempty"`
	BusinessName       *string                        `json:"business_name,omitempty"`
	TaxID              *string                        `json:"tax_id,omitempty"`
	BusinessLicense    *string                        `json:"business_license,omitempty"`
	BusinessAddress    *string                        `json:"business_address,omitempty"`
	BusinessPhone      *string                        `json:"business_phone,omitempty"`
	VerificationStatus enums.SellerVerificationStatus `json:"verification_status"`
	RiskScore          int                            `json:"risk_score"`
	PayoutSchedule     string                         `json:"payout_schedule"`
	CreatedAt          time.Time                      `json:"created_at"`
	UpdatedAt          time.Time                      `json:"updated_at"`
}

// PublicShopDTO is what buyers see on a shop page.
type PublicShopDTO struct {
	ID            uuid.UUID `json:"id"`
	ShopName      string    `json:"shop_name"`
	ShopSlug      string    `json:"shop_slug"`
	Description   *string   `json:"description,omitempty"`
	LogoURL       *string   `json:"logo_url,omitempty"`
	BannerURL     *string   `json:"banner_url,omitempty"`
	Verified      bool      `json:"verified"`
	ReviewAverage float64   `json:"review_average"`
	ReviewCount   int64     `json:"review_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func FromModel(m *models.Seller) *SellerDTO {
	if m == nil {
		return nil
	}
	return &SellerDTO{
		ID:                 m.ID,
		UserID:             m.UserID,
		ShopName:           m.ShopName,
		ShopSlug:           m.ShopSlug,
		Description:        m.Description,
		LogoURL:            m.LogoURL,
		BannerURL:          m.BannerURL,
		BusinessType:       m.BusinessType,
		BusinessName:       m.BusinessName,
		TaxID:              m.TaxID,
		BusinessLicense:    m.BusinessLicense,
		BusinessAddress:    m.BusinessAddress,
		BusinessPhone:      m.BusinessPhone,
		VerificationStatus: m.VerificationStatus,
		RiskScore:          m.RiskScore,
		PayoutSchedule:     m.PayoutSchedule,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// OnboardInput creates a shop.
type OnboardInput struct {
	ShopName        string              `json:"shop_name" validate:"required,min=2,max=80"`
	Description     *string             `json:"description" validate:"omitempty,max=2000"`
	BusinessType    *enums.BusinessType `json:"business_type"`
	BusinessName    *string             `json:"business_name" validate:"omitempty,max=200"`
	BusinessPhone   *string             `json:"business_phone" validate:"omitempty,max=32"`
	BusinessAddress *string             `json:"business_address" validate:"omitempty,max=500"`
}

// UpdateProfileInput patches shop fields. Nil leaves a field unchanged.
type UpdateProfileInput struct {
	ShopName        *string             `json:"shop_name" validate:"omitempty,min=2,max=80"`
	Description     *string             `json:"description" validate:"omitempty,max=2000"`
	LogoURL         *string             `json:"logo_url" validate:"omitempty,max=2048"`
	BannerURL       *string             `json:"banner_url" validate:"omitempty,max=2048"`
	BusinessType    *enums.BusinessType `json:"business_type"`
	BusinessName    *string             `json:"business_name" validate:"omitempty,max=200"`
	TaxID           *string             `json:"tax_id" validate:"omitempty,max=64"`
	BusinessLicense *string             `json:"business_license" validate:"omitempty,max=128"`
	BusinessAddress *string             `json:"business_address" validate:"omitempty,max=500"`
	BusinessPhone   *string             `json:"business_phone" validate:"omitempty,max=32"`
	PayoutSchedule  *string             `json:"payout_schedule" validate:"omitempty,oneof=daily weekly monthly"`
}

// Dashboard is the seller home summary.
type Dashboard struct {
	Seller              *SellerDTO                   `json:"seller"`
	ListingsByState     map[enums.ListingState]int64 `json:"listings_by_state"`
	OrdersByStatus      map[enums.OrderStatus]int64  `json:"orders_by_status"`
	GrossSales          decimal.Decimal              `json:"gross_sales"`
	PlatformFees        decimal.Decimal              `json:"platform_fees"`
	NetPayout           decimal.Decimal              `json:"net_payout"`
	ReviewAverage       float64                      `json:"review_average"`
	ReviewCount         int64                        `json:"review_count"`
	PendingVerification bool                         `json:"pending_verification"`
	Subscription        *subscriptions.StatusResult  `json:"subscription,omitempty"`
}
