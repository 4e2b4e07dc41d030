package stripewebhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
)

// EventRepository is the durable log of processed webhook events.
type EventRepository struct {
	repo.Base
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{Base: repo.NewBase(db)}
}

// Exists reports whether the event was already processed.
func (r *EventRepository) Exists(ctx context.Context, stripeEventID string) (bool, error) {
	var n int64
	err := r.DB(ctx).Model(&models.SubscriptionEvent{}).Where("stripe_event_id = ?", stripeEventID).Count(&n).Error
	return n > 0, err
}

// Record stores a processed event; recording the same event twice is a no-op.
func (r *EventRepository) Record(ctx context.Context, stripeEventID, eventType string, userID *uuid.UUID, processedAt time.Time) error {
	row := models.SubscriptionEvent{
		ID:            uuid.New(),
		StripeEventID: stripeEventID,
		Type:          eventType,
		UserID:        userID,
		ProcessedAt:   processedAt,
	}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(&row).Error
}
