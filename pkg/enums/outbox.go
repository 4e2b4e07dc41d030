package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSeller       OutboxAggregateType = "seller"
	AggregateUser         OutboxAggregateType = "user"
	AggregateSubscription OutboxAggregateType = "subscription"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSeller,
	AggregateUser,
	AggregateSubscription,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event relayed through the outbox.
type OutboxEventType string

const (
	EventOrderCreated                OutboxEventType = "order.created"
	EventOrderStatusChanged          OutboxEventType = "order.status_changed"
	EventSellerVerificationSubmitted OutboxEventType = "seller.verification_submitted"
	EventSellerVerificationDecided   OutboxEventType = "seller.verification_decided"
	EventSubscriptionActivated       OutboxEventType = "subscription.activated"
	EventSubscriptionLapsed          OutboxEventType = "subscription.lapsed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventSellerVerificationSubmitted,
	EventSellerVerificationDecided,
	EventSubscriptionActivated,
	EventSubscriptionLapsed,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
