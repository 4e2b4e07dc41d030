package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// Promotion is a seller-scoped discount code. CurrentUses never exceeds MaxUses.
type Promotion struct {
	ID             uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID       uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	Code           string             `gorm:"column:code;not null"`
	Description    *string            `gorm:"column:description"`
	DiscountType   enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue  decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderAmount *decimal.Decimal   `gorm:"column:min_order_amount;type:numeric(12,2)"`
	MaxUses        *int               `gorm:"column:max_uses"`
	CurrentUses    int                `gorm:"column:current_uses;not null;default:0"`
	StartsAt       *time.Time         `gorm:"column:starts_at"`
	EndsAt         *time.Time         `gorm:"column:ends_at"`
	Active         bool               `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Exhausted reports whether another redemption would exceed MaxUses.
func (p *Promotion) Exhausted() bool {
	return p != nil && p.MaxUses != nil && p.CurrentUses+1 > *p.MaxUses
}

// PromotionRedemption records a single use of a promotion by an order.
type PromotionRedemption struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PromotionID uuid.UUID `gorm:"column:promotion_id;type:uuid;not null;index"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
