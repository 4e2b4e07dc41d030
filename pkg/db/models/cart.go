package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// Cart is owned either by a user or by an anonymous session id.
type Cart struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID       `gorm:"column:user_id;type:uuid;index"`
	SessionID *string          `gorm:"column:session_id;index"`
	Status    enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Items     []CartItem       `gorm:"foreignKey:CartID;references:ID"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem is a listing line in a cart. UnitPrice is the price seen when added.
type CartItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	ListingID uuid.UUID       `gorm:"column:listing_id;type:uuid;not null"`
	SellerID  uuid.UUID       `gorm:"column:seller_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
