package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionEvent is the durable record of a processed Stripe webhook event.
type SubscriptionEvent struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	StripeEventID string     `gorm:"column:stripe_event_id;not null;uniqueIndex"`
	Type          string     `gorm:"column:type;not null"`
	UserID        *uuid.UUID `gorm:"column:user_id;type:uuid"`
	ProcessedAt   time.Time  `gorm:"column:processed_at;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}
