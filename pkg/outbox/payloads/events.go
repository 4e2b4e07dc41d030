package payloads

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// OrderCreated is emitted once per seller order produced by a checkout.
type OrderCreated struct {
	OrderID         uuid.UUID       `json:"order_id"`
	CheckoutGroupID uuid.UUID       `json:"checkout_group_id"`
	BuyerID         uuid.UUID       `json:"buyer_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	ItemCount       int             `json:"item_count"`
}

// OrderStatusChanged is emitted on every order transition.
type OrderStatusChanged struct {
	OrderID uuid.UUID         `json:"order_id"`
	BuyerID uuid.UUID         `json:"buyer_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// SellerVerificationSubmitted is emitted when a seller enters the review queue.
type SellerVerificationSubmitted struct {
	SellerID uuid.UUID `json:"seller_id"`
	UserID   uuid.UUID `json:"user_id"`
	QueueID  uuid.UUID `json:"queue_id"`
	Priority int       `json:"priority"`
}

// SellerVerificationDecided is emitted when an admin approves or rejects.
type SellerVerificationDecided struct {
	SellerID uuid.UUID                      `json:"seller_id"`
	UserID   uuid.UUID                      `json:"user_id"`
	QueueID  uuid.UUID                      `json:"queue_id"`
	Decision enums.SellerVerificationStatus `json:"decision"`
	Notes    string                         `json:"notes,omitempty"`
}

// SubscriptionActivated is emitted when a user's seller access flips on.
type SubscriptionActivated struct {
	UserID         uuid.UUID               `json:"user_id"`
	SubscriptionID string                  `json:"subscription_id"`
	State          enums.SubscriptionState `json:"state"`
}

// SubscriptionLapsed is emitted when seller access flips off.
type SubscriptionLapsed struct {
	UserID         uuid.UUID               `json:"user_id"`
	SubscriptionID string                  `json:"subscription_id"`
	State          enums.SubscriptionState `json:"state"`
}

var factories = map[enums.OutboxEventType]func() any{
	enums.EventOrderCreated:                func() any { return &OrderCreated{} },
	enums.EventOrderStatusChanged:          func() any { return &OrderStatusChanged{} },
	enums.EventSellerVerificationSubmitted: func() any { return &SellerVerificationSubmitted{} },
	enums.EventSellerVerificationDecided:   func() any { return &SellerVerificationDecided{} },
	enums.EventSubscriptionActivated:       func() any { return &SubscriptionActivated{} },
	enums.EventSubscriptionLapsed:          func() any { return &SubscriptionLapsed{} },
}

// Decode unmarshals data into the typed payload registered for eventType.
func Decode(eventType enums.OutboxEventType, data json.RawMessage) (any, error) {
	factory, ok := factories[eventType]
	if !ok {
		return nil, fmt.Errorf("no payload registered for %s", eventType)
	}
	out := factory()
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return out, nil
}
