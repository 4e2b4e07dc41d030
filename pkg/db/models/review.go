package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// Review is a buyer's rating of a delivered listing.
type Review struct {
	ID        uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID uuid.UUID          `gorm:"column:listing_id;type:uuid;not null;index"`
	SellerID  uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	BuyerID   uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null"`
	OrderID   uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	Rating    int                `gorm:"column:rating;not null"`
	Title     *string            `gorm:"column:title"`
	Body      string             `gorm:"column:body;not null;default:''"`
	Images    pq.StringArray     `gorm:"column:images;type:text[];not null;default:'{}'"`
	Status    enums.ReviewStatus `gorm:"column:status;type:text;not null;default:'visible'"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Favorite bookmarks a listing for a user.
type Favorite struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	ListingID uuid.UUID `gorm:"column:listing_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
