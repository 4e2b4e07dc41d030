package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageThread is a buyer/seller conversation, optionally about a listing.
type MessageThread struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID       uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerUserID  uuid.UUID  `gorm:"column:seller_user_id;type:uuid;not null;index"`
	ListingID     *uuid.UUID `gorm:"column:listing_id;type:uuid"`
	LastMessageAt *time.Time `gorm:"column:last_message_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// HasParticipant reports whether userID is the buyer or the seller.
func (t *MessageThread) HasParticipant(userID uuid.UUID) bool {
	return t != nil && (t.BuyerID == userID || t.SellerUserID == userID)
}

// Message is a single entry in a thread.
type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ThreadID  uuid.UUID  `gorm:"column:thread_id;type:uuid;not null;index"`
	SenderID  uuid.UUID  `gorm:"column:sender_id;type:uuid;not null"`
	Body      string     `gorm:"column:body;not null"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
