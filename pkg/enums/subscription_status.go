package enums

import "fmt"

// SubscriptionState is the locally persisted seller billing state. It mirrors
// the processor's subscription status plus SubscriptionStateNone for users who
// never started checkout.
type SubscriptionState string

const (
	SubscriptionStateNone              SubscriptionState = "none"
	SubscriptionStateIncomplete        SubscriptionState = "incomplete"
	SubscriptionStateTrialing          SubscriptionState = "trialing"
	SubscriptionStateActive            SubscriptionState = "active"
	SubscriptionStatePastDue           SubscriptionState = "past_due"
	SubscriptionStateUnpaid            SubscriptionState = "unpaid"
	SubscriptionStatePaused            SubscriptionState = "paused"
	SubscriptionStateCanceled          SubscriptionState = "canceled"
	SubscriptionStateIncompleteExpired SubscriptionState = "incomplete_expired"
)

var validSubscriptionStates = []SubscriptionState{
	SubscriptionStateNone,
	SubscriptionStateIncomplete,
	SubscriptionStateTrialing,
	SubscriptionStateActive,
	SubscriptionStatePastDue,
	SubscriptionStateUnpaid,
	SubscriptionStatePaused,
	SubscriptionStateCanceled,
	SubscriptionStateIncompleteExpired,
}

// subscriptionTransitions lists, per state, every state it may move to.
// Self transitions are always allowed and are not listed.
var subscriptionTransitions = map[SubscriptionState][]SubscriptionState{
	SubscriptionStateNone: {
		SubscriptionStateIncomplete,
		SubscriptionStateTrialing,
		SubscriptionStateActive,
	},
	SubscriptionStateIncomplete: {
		SubscriptionStateTrialing,
		SubscriptionStateActive,
		SubscriptionStatePastDue,
		SubscriptionStateCanceled,
		SubscriptionStateIncompleteExpired,
	},
	SubscriptionStateTrialing: {
		SubscriptionStateActive,
		SubscriptionStatePastDue,
		SubscriptionStateUnpaid,
		SubscriptionStatePaused,
		SubscriptionStateCanceled,
	},
	SubscriptionStateActive: {
		SubscriptionStatePastDue,
		SubscriptionStateUnpaid,
		SubscriptionStatePaused,
		SubscriptionStateCanceled,
	},
	SubscriptionStatePastDue: {
		SubscriptionStateActive,
		SubscriptionStateUnpaid,
		SubscriptionStateCanceled,
	},
	SubscriptionStateUnpaid: {
		SubscriptionStateActive,
		SubscriptionStateCanceled,
	},
	SubscriptionStatePaused: {
		SubscriptionStateActive,
		SubscriptionStateCanceled,
	},
	SubscriptionStateCanceled: {
		SubscriptionStateIncomplete,
	},
	SubscriptionStateIncompleteExpired: {
		SubscriptionStateIncomplete,
	},
}

// String implements fmt.Stringer.
func (s SubscriptionState) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionState) IsValid() bool {
	for _, candidate := range validSubscriptionStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// GrantsAccess reports whether the state entitles the user to seller billing access.
func (s SubscriptionState) GrantsAccess() bool {
	return s == SubscriptionStateActive || s == SubscriptionStateTrialing
}

// IsTerminal reports whether the processor subscription behind this state is finished.
func (s SubscriptionState) IsTerminal() bool {
	return s == SubscriptionStateCanceled || s == SubscriptionStateIncompleteExpired
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s SubscriptionState) CanTransitionTo(next SubscriptionState) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	for _, candidate := range subscriptionTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// SubscriptionStates returns every known state in declaration order.
func SubscriptionStates() []SubscriptionState {
	out := make([]SubscriptionState, len(validSubscriptionStates))
	copy(out, validSubscriptionStates)
	return out
}

// ParseSubscriptionState converts raw input into a SubscriptionState.
func ParseSubscriptionState(value string) (SubscriptionState, error) {
	for _, candidate := range validSubscriptionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription state %q", value)
}
