package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/types"
)

// Order is one seller's share of a checkout.
type Order struct {
	ID              uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CheckoutGroupID uuid.UUID         `gorm:"column:checkout_group_id;type:uuid;not null;index"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID        uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount        decimal.Decimal   `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	PlatformFee     decimal.Decimal   `gorm:"column:platform_fee;type:numeric(12,2);not null;default:0"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Currency        string            `gorm:"column:currency;not null;default:'usd'"`
	PromotionID     *uuid.UUID        `gorm:"column:promotion_id;type:uuid"`
	ShippingAddress types.Address     `gorm:"column:shipping_address;type:jsonb;not null"`
	TrackingNumber  *string           `gorm:"column:tracking_number"`
	PaidAt          *time.Time        `gorm:"column:paid_at"`
	ShippedAt       *time.Time        `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time        `gorm:"column:delivered_at"`
	CancelledAt     *time.Time        `gorm:"column:cancelled_at"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots a listing at purchase time and is never updated.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID uuid.UUID       `gorm:"column:listing_id;type:uuid;not null"`
	Title     string          `gorm:"column:title;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
