package subscriptions

import (
	"time"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// AccessReason names the precedence rule that produced a status result.
type AccessReason string

const (
	ReasonLocalRole             AccessReason = "local_role"
	ReasonSubscriptionActive    AccessReason = "subscription_active"
	ReasonPaymentMethodAttached AccessReason = "payment_method_attached"
	ReasonAttachedSavedCard     AccessReason = "attached_saved_card"
	ReasonNoActiveSubscription  AccessReason = "no_active_subscription"
)

// CreateResult is returned to the browser to confirm card collection.
type CreateResult struct {
	SubscriptionID string                  `json:"subscriptionId"`
	ClientSecret   string                  `json:"clientSecret,omitempty"`
	IntentType     string                  `json:"intentType,omitempty"`
	Status         enums.SubscriptionState `json:"status"`
}

// StatusResult answers whether a user has seller billing access.
type StatusResult struct {
	Active            bool                    `json:"active"`
	Reason            AccessReason            `json:"reason"`
	State             enums.SubscriptionState `json:"state"`
	Role              enums.UserRole          `json:"role"`
	SubscriptionID    string                  `json:"subscriptionId,omitempty"`
	CancelAtPeriodEnd bool                    `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  *time.Time              `json:"currentPeriodEnd,omitempty"`
	Degraded          bool                    `json:"degraded"`
}

// ActivateInput is the body of the activate call.
type ActivateInput struct {
	SetupIntentID string `json:"setupIntentId" validate:"required"`
}

// CancelInput is the body of the cancel call.
type CancelInput struct {
	AtPeriodEnd bool `json:"atPeriodEnd"`
}
