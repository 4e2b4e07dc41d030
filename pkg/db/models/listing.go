package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// Listing is a seller's for-sale item.
type Listing struct {
	ID              uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID        uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	Title           string             `gorm:"column:title;not null"`
	Description     string             `gorm:"column:description;not null;default:''"`
	Price           decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	CompareAtPrice  *decimal.Decimal   `gorm:"column:compare_at_price;type:numeric(12,2)"`
	Currency        string             `gorm:"column:currency;not null;default:'usd'"`
	Stock           int                `gorm:"column:stock;not null;default:0"`
	State           enums.ListingState `gorm:"column:state;type:text;not null;default:'draft'"`
	CategoryIDs     pq.StringArray     `gorm:"column:category_ids;type:text[];not null;default:'{}'"`
	Images          pq.StringArray     `gorm:"column:images;type:text[];not null;default:'{}'"`
	Condition       string             `gorm:"column:condition;not null;default:'new'"`
	Brand           *string            `gorm:"column:brand"`
	SKU             *string            `gorm:"column:sku"`
	SuspendedReason *string            `gorm:"column:suspended_reason"`
	PublishedAt     *time.Time         `gorm:"column:published_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Purchasable reports whether buyers may add the listing to a cart.
func (l *Listing) Purchasable() bool {
	return l != nil && l.State == enums.ListingStatePublished && l.Stock > 0
}
